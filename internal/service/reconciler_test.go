package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSyncAllRebuildsEmptyCache(t *testing.T) {
	db := newTestDB(t)
	products := seedCatalog(t, db)

	// Write three orders through the service against a throwaway cache, then
	// reconcile into a fresh (empty) one, as after a cache wipe.
	writeCache := newFakeCache()
	svc := NewOrderService(db, writeCache, nil, zap.NewNop())
	ctx := context.Background()

	for i, tc := range []struct {
		userID int64
		qty    string
	}{
		{1, "2"}, {1, "1.5"}, {2, "4"},
	} {
		pid := products[i%len(products)].ID
		_, err := svc.Create(ctx, tc.userID, []ItemInput{
			{ProductID: fmt.Sprint(pid), Quantity: tc.qty},
		})
		require.NoError(t, err)
	}

	cold := newFakeCache()
	rec := NewReconciler(db, cold, zap.NewNop())

	n, err := rec.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, cold.orders, 3)

	// Counters replay the truncated quantities: orders hit products[0] with
	// qty 2 and 4, products[1] with qty 1.5.
	assert.Equal(t, int64(6), cold.sales[products[0].ID])
	assert.Equal(t, int64(1), cold.sales[products[1].ID])

	// Rebuild matches what the write path produced directly.
	assert.Equal(t, writeCache.sales, cold.sales)
	assert.Equal(t, len(writeCache.orders), len(cold.orders))
}

func TestSyncAllIsNoOpWhenCachePopulated(t *testing.T) {
	db := newTestDB(t)
	products := seedCatalog(t, db)

	cache := newFakeCache()
	svc := NewOrderService(db, cache, nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "2"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), cache.sales[products[0].ID])

	rec := NewReconciler(db, cache, zap.NewNop())
	n, err := rec.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// No replay happened: counters are untouched.
	assert.Equal(t, int64(2), cache.sales[products[0].ID])
}

func TestSyncAllEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	rec := NewReconciler(db, cache, zap.NewNop())

	n, err := rec.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, cache.orders)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"order_ledger/internal/event"
	"order_ledger/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Product{}, &model.User{}, &model.Order{}, &model.OrderItem{}))
	return db
}

// fakeCache is an in-memory stand-in for the redis adapter. Setting err
// makes every operation fail, to exercise the suppression policy.
type fakeCache struct {
	orders map[uint]model.CachedOrder
	sales  map[uint]int64
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		orders: make(map[uint]model.CachedOrder),
		sales:  make(map[uint]int64),
	}
}

func (f *fakeCache) PutOrder(_ context.Context, o model.CachedOrder) error {
	if f.err != nil {
		return f.err
	}
	f.orders[o.ID] = o
	return nil
}

func (f *fakeCache) RemoveOrder(_ context.Context, orderID uint) error {
	if f.err != nil {
		return f.err
	}
	delete(f.orders, orderID)
	return nil
}

func (f *fakeCache) AddSales(_ context.Context, productID uint, qty int64) error {
	if f.err != nil {
		return f.err
	}
	f.sales[productID] += qty
	return nil
}

func (f *fakeCache) SubSales(_ context.Context, productID uint, qty int64) error {
	if f.err != nil {
		return f.err
	}
	f.sales[productID] -= qty
	return nil
}

func (f *fakeCache) IndexSize(_ context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.orders)), nil
}

// fakePublisher records published events; err makes Publish fail.
type fakePublisher struct {
	msgs []event.Message
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, msg event.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func seedCatalog(t *testing.T, db *gorm.DB) []model.Product {
	t.Helper()
	products := []model.Product{
		{Name: "Espresso Beans", Price: 10.00},
		{Name: "Filter Papers", Price: 2.50},
	}
	require.NoError(t, db.Create(&products).Error)
	return products
}

func TestCreatePersistsOrderAndMirrorsCache(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	products := seedCatalog(t, db)
	svc := NewOrderService(db, cache, nil, zap.NewNop())

	id, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "2"},
		{ProductID: fmt.Sprint(products[1].ID), Quantity: "1.5"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	var order model.Order
	require.NoError(t, db.First(&order, id).Error)
	assert.Equal(t, int64(7), order.UserID)
	// 2*10.00 + 1.5*2.50
	assert.Equal(t, 23.75, order.TotalAmount)

	var items []model.OrderItem
	require.NoError(t, db.Where("order_id = ?", id).Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, 10.00, items[0].UnitPrice)
	assert.Equal(t, 2.50, items[1].UnitPrice)

	cached, ok := cache.orders[id]
	require.True(t, ok, "order should be mirrored into the cache")
	assert.Equal(t, int64(7), cached.UserID)
	assert.Equal(t, 23.75, cached.TotalAmount)

	// floor(2)=2, floor(1.5)=1
	assert.Equal(t, int64(2), cache.sales[products[0].ID])
	assert.Equal(t, int64(1), cache.sales[products[1].ID])
}

func TestCreateUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	products := seedCatalog(t, db)
	svc := NewOrderService(db, cache, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "1"},
		{ProductID: "9999", Quantity: "1"},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "9999")

	var count int64
	require.NoError(t, db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count, "failed validation must not leave a committed order")
	assert.Empty(t, cache.orders)
	assert.Empty(t, cache.sales)
}

func TestCreateInvalidInput(t *testing.T) {
	db := newTestDB(t)
	products := seedCatalog(t, db)
	svc := NewOrderService(db, newFakeCache(), nil, zap.NewNop())
	pid := fmt.Sprint(products[0].ID)

	cases := []struct {
		name   string
		userID int64
		items  []ItemInput
	}{
		{"no user", 0, []ItemInput{{ProductID: pid, Quantity: "1"}}},
		{"no items", 7, nil},
		{"bad product id", 7, []ItemInput{{ProductID: "abc", Quantity: "1"}}},
		{"bad quantity", 7, []ItemInput{{ProductID: pid, Quantity: "abc"}}},
		{"zero quantity", 7, []ItemInput{{ProductID: pid, Quantity: "0"}}},
		{"negative quantity", 7, []ItemInput{{ProductID: pid, Quantity: "-2"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.userID, tc.items)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want ValidationError, got %v", err)
		})
	}

	var count int64
	require.NoError(t, db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateCacheFailureIsSuppressed(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	cache.err = errors.New("redis down")
	products := seedCatalog(t, db)

	core, logs := observer.New(zap.WarnLevel)
	svc := NewOrderService(db, cache, nil, zap.New(core))

	id, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "1"},
	})
	require.NoError(t, err, "cache failure must not fail the ledger write")
	require.NotZero(t, id)

	var order model.Order
	require.NoError(t, db.First(&order, id).Error)

	assert.Equal(t, 1, logs.FilterMessage("cache sync failed on create").Len())
}

func TestCreatePublishesEvent(t *testing.T) {
	db := newTestDB(t)
	products := seedCatalog(t, db)
	pub := &fakePublisher{}
	svc := NewOrderService(db, newFakeCache(), pub, zap.NewNop())

	id, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "1"},
	})
	require.NoError(t, err)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, event.TypeOrderCreated, pub.msgs[0].Type)
	assert.Equal(t, id, pub.msgs[0].OrderID)
	assert.NotEmpty(t, pub.msgs[0].EventID)
}

func TestPublishFailureIsSuppressed(t *testing.T) {
	db := newTestDB(t)
	products := seedCatalog(t, db)
	pub := &fakePublisher{err: errors.New("broker down")}

	core, logs := observer.New(zap.WarnLevel)
	svc := NewOrderService(db, newFakeCache(), pub, zap.New(core))

	_, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("event publish failed").Len())
}

func TestDeleteRoundTrip(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	products := seedCatalog(t, db)
	pub := &fakePublisher{}
	svc := NewOrderService(db, cache, pub, zap.NewNop())

	id, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "3"},
		{ProductID: fmt.Sprint(products[1].ID), Quantity: "2.9"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), cache.sales[products[0].ID])
	require.Equal(t, int64(2), cache.sales[products[1].ID])

	deleted, err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, deleted)

	err = db.First(&model.Order{}, id).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	var items []model.OrderItem
	require.NoError(t, db.Where("order_id = ?", id).Find(&items).Error)
	assert.Empty(t, items)

	// Counters return to their pre-create values and the index no longer
	// holds the id.
	assert.Equal(t, int64(0), cache.sales[products[0].ID])
	assert.Equal(t, int64(0), cache.sales[products[1].ID])
	assert.NotContains(t, cache.orders, id)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, event.TypeOrderDeleted, pub.msgs[1].Type)
}

func TestDeleteMissingOrder(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	svc := NewOrderService(db, cache, nil, zap.NewNop())

	deleted, err := svc.Delete(context.Background(), 424242)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, cache.orders)
	assert.Empty(t, cache.sales)
}

func TestDeleteCacheFailureIsSuppressed(t *testing.T) {
	db := newTestDB(t)
	cache := newFakeCache()
	products := seedCatalog(t, db)

	core, logs := observer.New(zap.WarnLevel)
	svc := NewOrderService(db, cache, nil, zap.New(core))

	id, err := svc.Create(context.Background(), 7, []ItemInput{
		{ProductID: fmt.Sprint(products[0].ID), Quantity: "1"},
	})
	require.NoError(t, err)

	cache.err = errors.New("redis down")
	deleted, err := svc.Delete(context.Background(), id)
	require.NoError(t, err, "cache failure must not undo the ledger delete")
	assert.True(t, deleted)

	err = db.First(&model.Order{}, id).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.NotZero(t, logs.FilterMessageSnippet("cache sync failed").Len())
}

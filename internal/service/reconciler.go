package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"order_ledger/internal/model"
)

// Reconciler rebuilds the cache from the ledger when the cache is empty.
// It is a full rebuild triggered only by total absence; it never merges with
// partial cache state. Two concurrent SyncAll calls observing an empty cache
// can race and double-increment counters, so callers needing strictness must
// serialize externally.
type Reconciler struct {
	db    *gorm.DB
	cache Cache
	log   *zap.Logger
}

func NewReconciler(db *gorm.DB, cache Cache, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, cache: cache, log: log}
}

// SyncAll repopulates the cache from the ledger if the index set is empty.
// Returns the number of orders now represented in the cache.
func (r *Reconciler) SyncAll(ctx context.Context) (int, error) {
	size, err := r.cache.IndexSize(ctx)
	if err != nil {
		return 0, fmt.Errorf("check cache index: %w", err)
	}
	if size > 0 {
		r.log.Info("cache already populated, skipping sync", zap.Int64("orders", size))
		return int(size), nil
	}

	var orders []model.Order
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&orders).Error; err != nil {
		return 0, fmt.Errorf("load orders: %w", err)
	}

	added := 0
	for _, o := range orders {
		cached := model.CachedOrder{
			ID:          o.ID,
			UserID:      o.UserID,
			TotalAmount: o.TotalAmount,
			CreatedAt:   o.CreatedAt,
		}
		if err := r.cache.PutOrder(ctx, cached); err != nil {
			return added, fmt.Errorf("cache order %d: %w", o.ID, err)
		}

		var items []model.OrderItem
		if err := r.db.WithContext(ctx).Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
			return added, fmt.Errorf("load items of order %d: %w", o.ID, err)
		}
		for _, it := range items {
			if err := r.cache.AddSales(ctx, it.ProductID, int64(math.Floor(it.Quantity))); err != nil {
				return added, fmt.Errorf("replay sales of order %d: %w", o.ID, err)
			}
		}
		added++
	}

	r.log.Info("cache rebuilt from ledger", zap.Int("orders", added))
	return added, nil
}

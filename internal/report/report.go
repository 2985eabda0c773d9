package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"order_ledger/internal/model"
)

// Cache is the read surface the report engine needs from the cache store.
type Cache interface {
	OrderIDs(ctx context.Context) ([]uint, error)
	GetOrder(ctx context.Context, orderID uint) (model.CachedOrder, bool, error)
	SalesCounts(ctx context.Context) (map[uint]int64, error)
}

// Spender is one row of the highest-spending-users report. User display
// names are resolved by the caller against the user directory.
type Spender struct {
	Rank       int     `json:"rank"`
	UserID     int64   `json:"user_id"`
	TotalSpent float64 `json:"total_spent"`
	OrderCount int     `json:"order_count"`
}

// ProductSales is one row of the best-sellers report.
type ProductSales struct {
	Rank         int     `json:"rank"`
	ProductID    uint    `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold int64   `json:"quantity_sold"`
	Price        float64 `json:"price"`
	TotalRevenue float64 `json:"total_revenue"`
}

// Engine computes the two aggregate reports from cache-resident data,
// enriched with relational lookups. It never falls back to the ledger for
// the order data itself: an empty cache means an empty report.
type Engine struct {
	cache Cache
	db    *gorm.DB
	log   *zap.Logger
}

func NewEngine(cache Cache, db *gorm.DB, log *zap.Logger) *Engine {
	return &Engine{cache: cache, db: db, log: log}
}

// HighestSpendingUsers groups cached orders by user, sums the spend and
// returns the top N users ranked by total, with per-user order counts.
func (e *Engine) HighestSpendingUsers(ctx context.Context, topN int) ([]Spender, error) {
	ids, err := e.cache.OrderIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached orders: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	spent := make(map[int64]decimal.Decimal)
	counts := make(map[int64]int)
	for _, id := range ids {
		o, found, err := e.cache.GetOrder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read cached order %d: %w", id, err)
		}
		if !found {
			// Index set and hashes can disagree after a partial failure;
			// skip and let reconciliation repair it.
			e.log.Debug("cached order missing its hash", zap.Uint("order_id", id))
			continue
		}
		spent[o.UserID] = spent[o.UserID].Add(decimal.NewFromFloat(o.TotalAmount))
		counts[o.UserID]++
	}

	users := make([]int64, 0, len(spent))
	for uid := range spent {
		users = append(users, uid)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return spent[users[i]].GreaterThan(spent[users[j]])
	})
	if len(users) > topN {
		users = users[:topN]
	}

	out := make([]Spender, 0, len(users))
	for i, uid := range users {
		out = append(out, Spender{
			Rank:       i + 1,
			UserID:     uid,
			TotalSpent: spent[uid].Round(2).InexactFloat64(),
			OrderCount: counts[uid],
		})
	}
	return out, nil
}

// MostSoldProducts reads every product sales counter, drops non-positive
// counts, enriches each row with the product's name and current catalog
// price and returns the top N by quantity sold.
//
// Revenue is quantity_sold times the *current* catalog price, not the
// historical unit price the orders were placed at. This mirrors the original
// reporting behavior and is a deliberate simplification.
func (e *Engine) MostSoldProducts(ctx context.Context, topN int) ([]ProductSales, error) {
	counts, err := e.cache.SalesCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sales counters: %w", err)
	}

	productIDs := make([]uint, 0, len(counts))
	for pid, n := range counts {
		if n > 0 {
			productIDs = append(productIDs, pid)
		}
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	var products []model.Product
	if err := e.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	out := make([]ProductSales, 0, len(products))
	for _, p := range products {
		sold := counts[p.ID]
		revenue := decimal.NewFromInt(sold).Mul(decimal.NewFromFloat(p.Price))
		out = append(out, ProductSales{
			ProductID:    p.ID,
			ProductName:  p.Name,
			QuantitySold: sold,
			Price:        p.Price,
			TotalRevenue: revenue.Round(2).InexactFloat64(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QuantitySold > out[j].QuantitySold
	})
	if len(out) > topN {
		out = out[:topN]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

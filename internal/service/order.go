package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"order_ledger/internal/event"
	"order_ledger/internal/model"
)

// Cache is the cache-store surface the write path and the reconciler need.
// The redis implementation lives in pkg/redis; tests inject in-memory fakes.
type Cache interface {
	PutOrder(ctx context.Context, o model.CachedOrder) error
	RemoveOrder(ctx context.Context, orderID uint) error
	AddSales(ctx context.Context, productID uint, qty int64) error
	SubSales(ctx context.Context, productID uint, qty int64) error
	IndexSize(ctx context.Context) (int64, error)
}

// EventPublisher emits order lifecycle events. Optional; may be nil.
type EventPublisher interface {
	Publish(ctx context.Context, msg event.Message) error
}

// ItemInput is one order line as received from the outer surface. Fields are
// string-typed because the surface hands over untyped form values; parsing
// and validation belong to the service.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
}

// OrderService 订单写模型：MySQL/SQLite 为准，Redis 保持同步。
// The ledger write is transactional and authoritative; the cache mirror is
// best-effort and its failures are logged, never propagated.
type OrderService struct {
	db     *gorm.DB
	cache  Cache
	events EventPublisher
	log    *zap.Logger
}

func NewOrderService(db *gorm.DB, cache Cache, events EventPublisher, log *zap.Logger) *OrderService {
	return &OrderService{db: db, cache: cache, events: events, log: log}
}

type parsedLine struct {
	productID uint
	quantity  float64
	unitPrice float64
}

// Create validates and persists an order in one transaction, then mirrors it
// into the cache. Returns the ledger-assigned order id.
func (s *OrderService) Create(ctx context.Context, userID int64, items []ItemInput) (uint, error) {
	if userID <= 0 || len(items) == 0 {
		return 0, validationf("an order needs a user and at least one item")
	}

	lines := make([]parsedLine, 0, len(items))
	productIDs := make([]uint, 0, len(items))
	for _, it := range items {
		pid64, err := strconv.ParseUint(it.ProductID, 10, 64)
		if err != nil {
			return 0, validationf("product id %q is not valid", it.ProductID)
		}
		qty, err := strconv.ParseFloat(it.Quantity, 64)
		if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) {
			return 0, validationf("quantity %q is not valid", it.Quantity)
		}
		if qty <= 0 {
			return 0, validationf("quantity must be greater than zero")
		}
		lines = append(lines, parsedLine{productID: uint(pid64), quantity: qty})
		productIDs = append(productIDs, uint(pid64))
	}

	var order model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var products []model.Product
		if err := tx.Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		priceMap := make(map[uint]float64, len(products))
		for _, p := range products {
			priceMap[p.ID] = p.Price
		}

		total := decimal.Zero
		for i := range lines {
			price, ok := priceMap[lines[i].productID]
			if !ok {
				return validationf("product id %d is not in the catalog", lines[i].productID)
			}
			lines[i].unitPrice = price
			total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(lines[i].quantity)))
		}

		order = model.Order{UserID: userID, TotalAmount: total.Round(2).InexactFloat64()}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		rows := make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, model.OrderItem{
				OrderID:   order.ID,
				ProductID: l.productID,
				Quantity:  l.quantity,
				UnitPrice: l.unitPrice,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Ledger write is durable; everything below is best-effort only.
	s.mirrorCreate(ctx, order, lines)
	s.publish(ctx, event.TypeOrderCreated, order)

	return order.ID, nil
}

// Delete removes an order and its items from the ledger, then mirrors the
// deletion into the cache. deleted=false means no such order, not an error.
func (s *OrderService) Delete(ctx context.Context, orderID uint) (bool, error) {
	var order model.Order
	var captured []model.OrderItem

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		// Items must be captured before the delete commits; afterwards the
		// counters could no longer be decremented.
		if err := tx.Where("order_id = ?", orderID).Find(&captured).Error; err != nil {
			return fmt.Errorf("load order items: %w", err)
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err := tx.Delete(&model.Order{}, orderID).Error; err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	s.mirrorDelete(ctx, orderID, captured)
	s.publish(ctx, event.TypeOrderDeleted, order)

	return true, nil
}

// mirrorCreate pushes a freshly committed order into the cache. Failures are
// logged and suppressed: the cache is non-authoritative and rebuildable.
func (s *OrderService) mirrorCreate(ctx context.Context, order model.Order, lines []parsedLine) {
	cached := model.CachedOrder{
		ID:          order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	}
	if err := s.cache.PutOrder(ctx, cached); err != nil {
		s.log.Warn("cache sync failed on create",
			zap.Uint("order_id", order.ID), zap.Error(err))
		return
	}
	for _, l := range lines {
		if err := s.cache.AddSales(ctx, l.productID, int64(math.Floor(l.quantity))); err != nil {
			s.log.Warn("cache sync failed on sales increment",
				zap.Uint("order_id", order.ID), zap.Uint("product_id", l.productID), zap.Error(err))
		}
	}
}

// mirrorDelete reverses the cache state of a deleted order using the items
// captured inside the delete transaction.
func (s *OrderService) mirrorDelete(ctx context.Context, orderID uint, items []model.OrderItem) {
	for _, it := range items {
		if err := s.cache.SubSales(ctx, it.ProductID, int64(math.Floor(it.Quantity))); err != nil {
			s.log.Warn("cache sync failed on sales decrement",
				zap.Uint("order_id", orderID), zap.Uint("product_id", it.ProductID), zap.Error(err))
		}
	}
	if err := s.cache.RemoveOrder(ctx, orderID); err != nil {
		s.log.Warn("cache sync failed on delete",
			zap.Uint("order_id", orderID), zap.Error(err))
	}
}

// publish emits a lifecycle event when a publisher is configured. Same
// policy as the cache mirror: the ledger already committed, failures are
// logged only.
func (s *OrderService) publish(ctx context.Context, typ string, order model.Order) {
	if s.events == nil {
		return
	}
	msg := event.NewMessage(typ, order.ID, order.UserID, order.TotalAmount)
	if err := s.events.Publish(ctx, msg); err != nil {
		s.log.Warn("event publish failed",
			zap.String("type", typ), zap.Uint("order_id", order.ID), zap.Error(err))
	}
}

package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"

	"order_ledger/internal/model"
)

// Cache wraps a go-redis client with the order cache layout:
//
//	order:<id>           hash {id, user_id, total_amount, created_at}
//	orders               set of all known order ids
//	product_sales:<pid>  integer counter of truncated quantities sold
//
// Every operation is applied independently and immediately; there is no
// cross-key transaction. The relational ledger is the source of truth and
// the cache can always be rebuilt from it.
type Cache struct {
	client *rd.Client
}

func NewCache(client *rd.Client) *Cache {
	return &Cache{client: client}
}

// Ping 联通性检查。
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error { return c.client.Close() }

// PutOrder writes the denormalized hash and adds the id to the index set.
func (c *Cache) PutOrder(ctx context.Context, o model.CachedOrder) error {
	key := OrderKey(o.ID)
	err := c.client.HSet(ctx, key, map[string]any{
		"id":           strconv.FormatUint(uint64(o.ID), 10),
		"user_id":      strconv.FormatInt(o.UserID, 10),
		"total_amount": strconv.FormatFloat(o.TotalAmount, 'f', -1, 64),
		"created_at":   o.CreatedAt.Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := c.client.SAdd(ctx, OrderSetKey, o.ID).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", OrderSetKey, err)
	}
	return nil
}

// GetOrder reads one cached order. found=false when the hash is absent.
func (c *Cache) GetOrder(ctx context.Context, orderID uint) (model.CachedOrder, bool, error) {
	key := OrderKey(orderID)
	m, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return model.CachedOrder{}, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return model.CachedOrder{}, false, nil
	}
	o, err := decodeOrderHash(m)
	if err != nil {
		return model.CachedOrder{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return o, true, nil
}

// RemoveOrder deletes the order hash and removes the id from the index set.
func (c *Cache) RemoveOrder(ctx context.Context, orderID uint) error {
	key := OrderKey(orderID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	if err := c.client.SRem(ctx, OrderSetKey, orderID).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", OrderSetKey, err)
	}
	return nil
}

// OrderIDs lists every cached order id, newest (highest id) first.
func (c *Cache) OrderIDs(ctx context.Context) ([]uint, error) {
	members, err := c.client.SMembers(ctx, OrderSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", OrderSetKey, err)
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad member %q in %s: %w", m, OrderSetKey, err)
		}
		ids = append(ids, uint(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

// IndexSize returns the cardinality of the order index set.
func (c *Cache) IndexSize(ctx context.Context) (int64, error) {
	n, err := c.client.SCard(ctx, OrderSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("scard %s: %w", OrderSetKey, err)
	}
	return n, nil
}

// AddSales increments a product's sold-quantity counter.
func (c *Cache) AddSales(ctx context.Context, productID uint, qty int64) error {
	key := ProductSalesKey(productID)
	if err := c.client.IncrBy(ctx, key, qty).Err(); err != nil {
		return fmt.Errorf("incrby %s: %w", key, err)
	}
	return nil
}

// SubSales decrements a product's sold-quantity counter.
func (c *Cache) SubSales(ctx context.Context, productID uint, qty int64) error {
	key := ProductSalesKey(productID)
	if err := c.client.DecrBy(ctx, key, qty).Err(); err != nil {
		return fmt.Errorf("decrby %s: %w", key, err)
	}
	return nil
}

// SalesCounts discovers every product sales counter via SCAN and returns
// product id -> sold quantity.
func (c *Cache) SalesCounts(ctx context.Context) (map[uint]int64, error) {
	out := make(map[uint]int64)
	iter := c.client.Scan(ctx, 0, ProductSalesPattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var pid uint
		if _, err := fmt.Sscanf(key, "product_sales:%d", &pid); err != nil {
			continue // foreign key shape, skip
		}
		n, err := c.client.Get(ctx, key).Int64()
		if err != nil {
			if err == rd.Nil {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		out[pid] = n
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", ProductSalesPattern, err)
	}
	return out, nil
}

func decodeOrderHash(m map[string]string) (model.CachedOrder, error) {
	id, err := strconv.ParseUint(m["id"], 10, 64)
	if err != nil {
		return model.CachedOrder{}, fmt.Errorf("invalid id %q", m["id"])
	}
	userID, err := strconv.ParseInt(m["user_id"], 10, 64)
	if err != nil {
		return model.CachedOrder{}, fmt.Errorf("invalid user_id %q", m["user_id"])
	}
	total, err := strconv.ParseFloat(m["total_amount"], 64)
	if err != nil {
		return model.CachedOrder{}, fmt.Errorf("invalid total_amount %q", m["total_amount"])
	}
	// created_at is informational; a missing or malformed value is tolerated.
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])

	return model.CachedOrder{
		ID:          uint(id),
		UserID:      userID,
		TotalAmount: total,
		CreatedAt:   createdAt,
	}, nil
}

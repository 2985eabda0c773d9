// Command seed populates the ledger with a demo catalog and, optionally, a
// batch of random orders written through the full create path so the cache
// hashes and sales counters are exercised end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"strconv"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"order_ledger/internal/model"
	"order_ledger/internal/service"
	rediscache "order_ledger/pkg/redis"
)

func main() {
	dbPath := flag.String("db", "order_ledger.db", "sqlite database path")
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	redisDB := flag.Int("redis-db", 0, "redis database number")
	nOrders := flag.Int("orders", 0, "number of random orders to create")
	seed := flag.Int64("seed", 42, "random seed for order generation")
	flag.Parse()

	logger := zap.Must(zap.NewDevelopment())
	defer logger.Sync()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(&model.Product{}, &model.User{}, &model.Order{}, &model.OrderItem{}); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	products := seedProducts(db, logger)
	users := seedUsers(db, logger)

	if *nOrders <= 0 {
		return
	}

	rdb := rd.NewClient(&rd.Options{Addr: *redisAddr, DB: *redisDB})
	cache := rediscache.NewCache(rdb)
	orders := service.NewOrderService(db, cache, nil, logger)

	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()
	created := 0
	for i := 0; i < *nOrders; i++ {
		user := users[rng.Intn(len(users))]
		nItems := 1 + rng.Intn(3)
		items := make([]service.ItemInput, 0, nItems)
		for j := 0; j < nItems; j++ {
			p := products[rng.Intn(len(products))]
			qty := float64(1+rng.Intn(4)) + float64(rng.Intn(100))/100
			items = append(items, service.ItemInput{
				ProductID: strconv.FormatUint(uint64(p.ID), 10),
				Quantity:  fmt.Sprintf("%.2f", qty),
			})
		}
		if _, err := orders.Create(ctx, user.ID, items); err != nil {
			logger.Warn("seed order failed", zap.Error(err))
			continue
		}
		created++
	}
	logger.Info("seeding done", zap.Int("orders", created))
}

// seedProducts inserts the demo catalog once; reruns are no-ops.
func seedProducts(db *gorm.DB, logger *zap.Logger) []model.Product {
	var existing []model.Product
	if err := db.Find(&existing).Error; err != nil {
		logger.Fatal("load products", zap.Error(err))
	}
	if len(existing) > 0 {
		return existing
	}

	catalog := []model.Product{
		{Name: "Espresso Beans 1kg", Price: 18.50},
		{Name: "Pour-Over Kettle", Price: 42.00},
		{Name: "Ceramic Mug", Price: 9.90},
		{Name: "Hand Grinder", Price: 64.00},
		{Name: "Filter Papers (100)", Price: 4.25},
		{Name: "Cold Brew Bottle", Price: 23.75},
	}
	if err := db.Create(&catalog).Error; err != nil {
		logger.Fatal("seed products", zap.Error(err))
	}
	logger.Info("seeded products", zap.Int("count", len(catalog)))
	return catalog
}

// seedUsers inserts the demo directory once; reruns are no-ops.
func seedUsers(db *gorm.DB, logger *zap.Logger) []model.User {
	var existing []model.User
	if err := db.Find(&existing).Error; err != nil {
		logger.Fatal("load users", zap.Error(err))
	}
	if len(existing) > 0 {
		return existing
	}

	directory := []model.User{
		{Name: "Ada Moreau", Email: "ada@example.com"},
		{Name: "Brice Tanaka", Email: "brice@example.com"},
		{Name: "Carla Osei", Email: "carla@example.com"},
		{Name: "Dmitri Fall", Email: "dmitri@example.com"},
		{Name: "Elif Haddad", Email: "elif@example.com"},
	}
	if err := db.Create(&directory).Error; err != nil {
		logger.Fatal("seed users", zap.Error(err))
	}
	logger.Info("seeded users", zap.Int("count", len(directory)))
	return directory
}

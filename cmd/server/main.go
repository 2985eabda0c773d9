package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"order_ledger/internal/config"
	"order_ledger/internal/event"
	"order_ledger/internal/model"
	"order_ledger/internal/report"
	"order_ledger/internal/router"
	"order_ledger/internal/service"
	rediscache "order_ledger/pkg/redis"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load", zap.Error(err))
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(&model.Product{}, &model.User{}, &model.Order{}, &model.OrderItem{}); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	cache := rediscache.NewCache(rdb)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cache.Ping(pingCtx); err != nil {
		// Degraded but usable: the ledger stays authoritative and the cache
		// can be rebuilt once redis is back.
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}
	cancel()

	var publisher service.EventPublisher
	if cfg.KafkaEnabled {
		producer := event.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	orders := service.NewOrderService(db, cache, publisher, logger)
	reconciler := service.NewReconciler(db, cache, logger)
	reports := report.NewEngine(cache, db, logger)

	// Cold-start reconciliation: rebuild the cache from the ledger when the
	// index set is empty.
	if _, err := reconciler.SyncAll(context.Background()); err != nil {
		logger.Warn("startup cache sync failed", zap.Error(err))
	}

	r := gin.Default()
	router.Setup(r, db, rdb, cache, orders, reconciler, reports, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}

package router

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"order_ledger/internal/config"
	"order_ledger/internal/middleware"
	"order_ledger/internal/model"
	"order_ledger/internal/report"
	"order_ledger/internal/service"
	rediscache "order_ledger/pkg/redis"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, cache *rediscache.Cache,
	orders *service.OrderService, reconciler *service.Reconciler,
	reports *report.Engine, cfg config.AppConfig) {

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	// Catalog and user directory
	r.GET("/api/products", listProducts(db))
	r.POST("/api/products", createProduct(db))
	r.GET("/api/users", listUsers(db))
	r.POST("/api/users", createUser(db))

	// Orders
	r.POST("/api/orders", middleware.RedisRateLimit(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow), createOrder(orders))
	r.DELETE("/api/orders/:id", deleteOrder(orders))
	r.GET("/api/orders/:id", getOrder(cache))

	// Cache maintenance
	r.POST("/api/cache/sync", syncCache(reconciler))

	// Reports
	r.GET("/api/reports/top_spenders", topSpenders(reports, db, cfg.ReportTopN))
	r.GET("/api/reports/best_sellers", bestSellers(reports, cfg.ReportTopN))
}

// listProducts 查询商品列表。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createProduct 创建商品。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string  `json:"name" binding:"required"`
			Price float64 `json:"price" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		p := &model.Product{Name: req.Name, Price: req.Price}
		if err := db.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

func listUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.User
		if err := db.Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

func createUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string `json:"name" binding:"required"`
			Email string `json:"email" binding:"omitempty,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		u := &model.User{Name: req.Name, Email: req.Email}
		if err := db.Create(u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": u})
	}
}

// createOrder 下单入口。校验与落库由 OrderService 负责。
func createOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID int64               `json:"user_id" binding:"required,min=1"`
			Items  []service.ItemInput `json:"items" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		id, err := orders.Create(c.Request.Context(), req.UserID, req.Items)
		if err != nil {
			if service.IsValidation(err) {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"order_id": id}})
	}
}

func deleteOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "order id is not valid"})
			return
		}
		deleted, err := orders.Delete(c.Request.Context(), uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"deleted": 1}})
	}
}

// getOrder reads the denormalized order from the cache, not the ledger.
func getOrder(cache *rediscache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "order id is not valid"})
			return
		}
		o, found, err := cache.GetOrder(c.Request.Context(), uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "msg": "order not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": o})
	}
}

func syncCache(reconciler *service.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reconciler.SyncAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{"orders": n}})
	}
}

// topSpenders renders the highest-spending-users report, enriching each row
// with the user's display name from the directory. Report failures degrade
// to an error message payload; they never fail the request.
func topSpenders(reports *report.Engine, db *gorm.DB, defaultN int) gin.HandlerFunc {
	return func(c *gin.Context) {
		topN := queryTopN(c, defaultN)

		rows, err := reports.HighestSpendingUsers(c.Request.Context(), topN)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": []gin.H{}, "msg": "report unavailable: " + err.Error()})
			return
		}

		var users []model.User
		if err := db.Find(&users).Error; err != nil {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": []gin.H{}, "msg": "report unavailable: " + err.Error()})
			return
		}
		names := make(map[int64]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Name
		}

		out := make([]gin.H, 0, len(rows))
		for _, r := range rows {
			name, ok := names[r.UserID]
			if !ok {
				name = fmt.Sprintf("user %d", r.UserID)
			}
			out = append(out, gin.H{
				"rank":        r.Rank,
				"user_id":     r.UserID,
				"user_name":   name,
				"total_spent": r.TotalSpent,
				"order_count": r.OrderCount,
			})
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": out})
	}
}

func bestSellers(reports *report.Engine, defaultN int) gin.HandlerFunc {
	return func(c *gin.Context) {
		topN := queryTopN(c, defaultN)

		rows, err := reports.MostSoldProducts(c.Request.Context(), topN)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"code": 0, "data": []report.ProductSales{}, "msg": "report unavailable: " + err.Error()})
			return
		}
		if rows == nil {
			rows = []report.ProductSales{}
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": rows})
	}
}

func queryTopN(c *gin.Context, fallback int) int {
	v := c.Query("n")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

package redis

import "fmt"

// OrderSetKey is the index set holding every cached order id.
const OrderSetKey = "orders"

// OrderKey 统一约定订单哈希键名。
func OrderKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

// ProductSalesKey names the per-product sold-quantity counter.
func ProductSalesKey(productID uint) string {
	return fmt.Sprintf("product_sales:%d", productID)
}

// ProductSalesPattern matches every sales counter key, for SCAN discovery.
const ProductSalesPattern = "product_sales:*"

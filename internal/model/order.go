package model

import (
	"time"

	"gorm.io/gorm"
)

// Order is the authoritative ledger record. TotalAmount is fixed at creation
// time as the sum of quantity*unit_price over the order's items; the row is
// immutable afterwards except via full deletion.
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      int64   `gorm:"not null;index" json:"user_id"`
	TotalAmount float64 `gorm:"not null;type:decimal(10,2)" json:"total_amount"`
}

func (Order) TableName() string { return "orders" }

// OrderItem belongs to exactly one Order; deleting the order deletes its
// items in the same transaction. UnitPrice is snapshotted from the catalog
// at order time and never re-read.
type OrderItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderID   uint    `gorm:"not null;index" json:"order_id"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Quantity  float64 `gorm:"not null" json:"quantity"` // positive, fractional allowed
	UnitPrice float64 `gorm:"not null;type:decimal(10,2)" json:"unit_price"`
}

func (OrderItem) TableName() string { return "order_items" }

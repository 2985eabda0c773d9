package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品目录。Price is the *current* catalog price and may change
// independently of historical orders (those keep their snapshotted UnitPrice).
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string  `gorm:"size:128;not null" json:"name"`
	Price float64 `gorm:"not null;type:decimal(10,2)" json:"price"`
}

func (Product) TableName() string { return "products" }

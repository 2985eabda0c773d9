package model

import (
	"time"

	"gorm.io/gorm"
)

// User directory record; supplies display names for report enrichment.
type User struct {
	ID        int64          `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"size:128;not null" json:"name"`
	Email string `gorm:"size:255" json:"email"`
}

func (User) TableName() string { return "users" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Description    string         `gorm:"column:description" json:"description,omitempty"`
	Price          float64        `gorm:"column:price;not null" json:"price"`
	Stock          int            `gorm:"column:stock;not null;default:0" json:"stock"`
	PrimaryImageID *uuid.UUID     `gorm:"type:uuid;column:primary_image_id" json:"primary_image_id,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Product) TableName() string { return "product" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	VariantOriginal = "original"
	Variant256      = "256px"
	Variant512      = "512px"
	Variant1024     = "1024px"
)

// VariantNames lists every rendered variant in render order.
var VariantNames = []string{VariantOriginal, Variant256, Variant512, Variant1024}

// ProductImage is one rendered variant of a completed upload. Owner is unset
// until the variant is attached to a product; fan-out copies rows with the
// owner filled in.
type ProductImage struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UploadID uuid.UUID `gorm:"type:uuid;not null;index" json:"upload_id"`
	Upload   *Upload   `gorm:"constraint:OnDelete:CASCADE;foreignKey:UploadID;references:ID" json:"upload,omitempty"`
	// Nullable pair instead of sentinel values: nil means not yet attached.
	OwnerType  *string    `gorm:"column:owner_type;index:idx_product_image_owner,priority:1" json:"owner_type,omitempty"`
	OwnerID    *uuid.UUID `gorm:"type:uuid;column:owner_id;index:idx_product_image_owner,priority:2" json:"owner_id,omitempty"`
	Variant    string     `gorm:"column:variant;not null;index" json:"variant"`
	StorageKey string     `gorm:"column:storage_key;not null" json:"storage_key"`
	Width      int        `gorm:"column:width" json:"width"`
	Height     int        `gorm:"column:height" json:"height"`
	SizeBytes  int64      `gorm:"column:size_bytes;not null" json:"size_bytes"`
	SortOrder  int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProductImage) TableName() string { return "product_image" }

// OwnerTypeProduct is the only owner kind today; kept as a column so future
// record kinds can share the same asset rows.
const OwnerTypeProduct = "product"

func (pi *ProductImage) Attached() bool {
	return pi.OwnerType != nil && pi.OwnerID != nil
}

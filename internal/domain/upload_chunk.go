package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadChunk tracks one fixed-size slice of an upload. Rows are created
// eagerly at initialization, one per expected index, and mutated once on
// delivery.
type UploadChunk struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UploadID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_upload_chunk,priority:1" json:"upload_id"`
	Upload    *Upload   `gorm:"constraint:OnDelete:CASCADE;foreignKey:UploadID;references:ID" json:"upload,omitempty"`
	Index     int       `gorm:"column:chunk_index;not null;uniqueIndex:idx_upload_chunk,priority:2" json:"chunk_index"`
	Size      int64     `gorm:"column:chunk_size;not null" json:"chunk_size"`
	Checksum  string    `gorm:"column:chunk_checksum;not null;default:''" json:"chunk_checksum"`
	Delivered bool      `gorm:"column:delivered;not null;default:false;index" json:"delivered"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UploadChunk) TableName() string { return "upload_chunk" }

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UploadStatusPending   = "pending"
	UploadStatusUploading = "uploading"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

// Upload is one declared intent to transfer a file. Token is the externally
// addressable session identity; ID stays internal.
type Upload struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Token        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"token"`
	Filename     string         `gorm:"column:filename;not null" json:"filename"`
	MimeType     string         `gorm:"column:mime_type;not null" json:"mime_type"`
	TotalSize    int64          `gorm:"column:total_size;not null" json:"total_size"`
	UploadedSize int64          `gorm:"column:uploaded_size;not null;default:0" json:"uploaded_size"`
	Checksum     string         `gorm:"column:checksum;not null" json:"checksum"`
	Status       string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Upload) TableName() string { return "upload" }

// Terminal reports whether the upload reached a final status. Terminal
// uploads are never mutated again except for diagnostic metadata.
func (u *Upload) Terminal() bool {
	return u.Status == UploadStatusCompleted || u.Status == UploadStatusFailed
}

func (u *Upload) Complete() bool {
	return u.UploadedSize >= u.TotalSize
}

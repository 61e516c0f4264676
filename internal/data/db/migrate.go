package db

import (
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Chunked upload engine
		// =========================
		&domain.Upload{},
		&domain.UploadChunk{},

		// =========================
		// Catalog
		// =========================
		&domain.Product{},
		&domain.ProductImage{},
	)
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}

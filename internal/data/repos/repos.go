package repos

import (
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos/catalog"
	"github.com/bytecart/catalog-backend/internal/data/repos/uploads"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type UploadRepo = uploads.UploadRepo
type UploadChunkRepo = uploads.UploadChunkRepo

type ProductRepo = catalog.ProductRepo
type ProductImageRepo = catalog.ProductImageRepo

type ProductListParams = catalog.ListParams

func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	return uploads.NewUploadRepo(db, baseLog)
}
func NewUploadChunkRepo(db *gorm.DB, baseLog *logger.Logger) UploadChunkRepo {
	return uploads.NewUploadChunkRepo(db, baseLog)
}
func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return catalog.NewProductRepo(db, baseLog)
}
func NewProductImageRepo(db *gorm.DB, baseLog *logger.Logger) ProductImageRepo {
	return catalog.NewProductImageRepo(db, baseLog)
}

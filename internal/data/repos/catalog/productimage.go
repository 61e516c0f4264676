package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type ProductImageRepo interface {
	CreateBatch(dbc dbctx.Context, images []*domain.ProductImage) error
	ListByUpload(dbc dbctx.Context, uploadID uuid.UUID) ([]*domain.ProductImage, error)
	ListByOwner(dbc dbctx.Context, uploadID uuid.UUID, ownerType string, ownerID uuid.UUID) ([]*domain.ProductImage, error)
	ListForOwner(dbc dbctx.Context, ownerType string, ownerID uuid.UUID) ([]*domain.ProductImage, error)
	// AttachUnowned fills in the owner pair on every still-unattached variant
	// of the upload.
	AttachUnowned(dbc dbctx.Context, uploadID uuid.UUID, ownerType string, ownerID uuid.UUID) error
	// HasAttachedOriginal reports whether the product already carries the
	// original variant of a completed upload with this filename.
	HasAttachedOriginal(dbc dbctx.Context, filename string, ownerType string, ownerID uuid.UUID) (bool, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type productImageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductImageRepo(db *gorm.DB, baseLog *logger.Logger) ProductImageRepo {
	repoLog := baseLog.With("repo", "ProductImageRepo")
	return &productImageRepo{db: db, log: repoLog}
}

func (r *productImageRepo) CreateBatch(dbc dbctx.Context, images []*domain.ProductImage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(images) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&images).Error
}

func (r *productImageRepo) ListByUpload(dbc dbctx.Context, uploadID uuid.UUID) ([]*domain.ProductImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.ProductImage
	if err := transaction.WithContext(dbc.Ctx).
		Where("upload_id = ?", uploadID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *productImageRepo) ListByOwner(dbc dbctx.Context, uploadID uuid.UUID, ownerType string, ownerID uuid.UUID) ([]*domain.ProductImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.ProductImage
	if err := transaction.WithContext(dbc.Ctx).
		Where("upload_id = ? AND owner_type = ? AND owner_id = ?", uploadID, ownerType, ownerID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *productImageRepo) ListForOwner(dbc dbctx.Context, ownerType string, ownerID uuid.UUID) ([]*domain.ProductImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.ProductImage
	if err := transaction.WithContext(dbc.Ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("sort_order ASC, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *productImageRepo) AttachUnowned(dbc dbctx.Context, uploadID uuid.UUID, ownerType string, ownerID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.ProductImage{}).
		Where("upload_id = ? AND owner_type IS NULL AND owner_id IS NULL", uploadID).
		Updates(map[string]interface{}{
			"owner_type": ownerType,
			"owner_id":   ownerID,
		}).Error
}

func (r *productImageRepo) HasAttachedOriginal(dbc dbctx.Context, filename string, ownerType string, ownerID uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.ProductImage{}).
		Joins("JOIN upload ON upload.id = product_image.upload_id").
		Where("upload.filename = ? AND upload.status = ?", filename, domain.UploadStatusCompleted).
		Where("product_image.owner_type = ? AND product_image.owner_id = ?", ownerType, ownerID).
		Where("product_image.variant = ?", domain.VariantOriginal).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *productImageRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("id IN ?", ids).
		Delete(&domain.ProductImage{}).Error
}

package uploads

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type UploadChunkRepo interface {
	CreateBatch(dbc dbctx.Context, chunks []*domain.UploadChunk) error
	GetByIndexForUpdate(dbc dbctx.Context, uploadID uuid.UUID, index int) (*domain.UploadChunk, error)
	MarkDelivered(dbc dbctx.Context, id uuid.UUID, checksum string, size int64) error
	// SumDelivered recomputes the aggregate from delivered rows rather than
	// incrementing, so retries and races cannot drift the total.
	SumDelivered(dbc dbctx.Context, uploadID uuid.UUID) (int64, error)
	ListByUpload(dbc dbctx.Context, uploadID uuid.UUID) ([]*domain.UploadChunk, error)
}

type uploadChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadChunkRepo(db *gorm.DB, baseLog *logger.Logger) UploadChunkRepo {
	repoLog := baseLog.With("repo", "UploadChunkRepo")
	return &uploadChunkRepo{db: db, log: repoLog}
}

func (r *uploadChunkRepo) CreateBatch(dbc dbctx.Context, chunks []*domain.UploadChunk) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(chunks) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&chunks).Error
}

func (r *uploadChunkRepo) GetByIndexForUpdate(dbc dbctx.Context, uploadID uuid.UUID, index int) (*domain.UploadChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx)
	if transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var result domain.UploadChunk
	if err := q.
		Where("upload_id = ? AND chunk_index = ?", uploadID, index).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *uploadChunkRepo) MarkDelivered(dbc dbctx.Context, id uuid.UUID, checksum string, size int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.UploadChunk{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"chunk_checksum": checksum,
			"chunk_size":     size,
			"delivered":      true,
		}).Error
}

func (r *uploadChunkRepo) SumDelivered(dbc dbctx.Context, uploadID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var total int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.UploadChunk{}).
		Where("upload_id = ? AND delivered = ?", uploadID, true).
		Select("COALESCE(SUM(chunk_size), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *uploadChunkRepo) ListByUpload(dbc dbctx.Context, uploadID uuid.UUID) ([]*domain.UploadChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.UploadChunk
	if err := transaction.WithContext(dbc.Ctx).
		Where("upload_id = ?", uploadID).
		Order("chunk_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

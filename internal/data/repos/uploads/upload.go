package uploads

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type UploadRepo interface {
	Create(dbc dbctx.Context, upload *domain.Upload) error
	GetByToken(dbc dbctx.Context, token uuid.UUID) (*domain.Upload, error)
	// GetByTokenForUpdate takes a row lock on the upload so concurrent chunk
	// deliveries to the same session serialize inside the transaction.
	GetByTokenForUpdate(dbc dbctx.Context, token uuid.UUID) (*domain.Upload, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error
	ListCompleted(dbc dbctx.Context) ([]*domain.Upload, error)
}

type uploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	repoLog := baseLog.With("repo", "UploadRepo")
	return &uploadRepo{db: db, log: repoLog}
}

func (r *uploadRepo) Create(dbc dbctx.Context, upload *domain.Upload) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(upload).Error
}

func (r *uploadRepo) GetByToken(dbc dbctx.Context, token uuid.UUID) (*domain.Upload, error) {
	return r.getByToken(dbc, token, false)
}

func (r *uploadRepo) GetByTokenForUpdate(dbc dbctx.Context, token uuid.UUID) (*domain.Upload, error) {
	return r.getByToken(dbc, token, true)
}

func (r *uploadRepo) getByToken(dbc dbctx.Context, token uuid.UUID, lock bool) (*domain.Upload, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	q := transaction.WithContext(dbc.Ctx)
	// SQLite serializes writers on its own and rejects FOR UPDATE.
	if lock && transaction.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var result domain.Upload
	if err := q.Where("token = ?", token).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *uploadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Upload{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *uploadRepo) ListCompleted(dbc dbctx.Context) ([]*domain.Upload, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Upload
	if err := transaction.WithContext(dbc.Ctx).
		Where("status = ?", domain.UploadStatusCompleted).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

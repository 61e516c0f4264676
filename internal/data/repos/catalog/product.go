package catalog

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

type ListParams struct {
	Page    int
	PerPage int
	Search  string
}

type ProductRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Product, error)
	GetBySKU(dbc dbctx.Context, sku string) (*domain.Product, error)
	// UpsertBySKU creates the product or updates the existing row with the
	// same SKU. Returns true when a new row was created.
	UpsertBySKU(dbc dbctx.Context, product *domain.Product) (bool, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error
	List(dbc dbctx.Context, params ListParams) ([]*domain.Product, int64, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	repoLog := baseLog.With("repo", "ProductRepo")
	return &productRepo{db: db, log: repoLog}
}

func (r *productRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Product
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *productRepo) GetBySKU(dbc dbctx.Context, sku string) (*domain.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Product
	err := transaction.WithContext(dbc.Ctx).Where("sku = ?", sku).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *productRepo) UpsertBySKU(dbc dbctx.Context, product *domain.Product) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.GetBySKU(dbc, product.SKU)
	if err != nil {
		return false, err
	}
	if existing == nil {
		if product.ID == uuid.Nil {
			product.ID = uuid.New()
		}
		if err := transaction.WithContext(dbc.Ctx).Create(product).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.Product{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"name":        product.Name,
			"description": product.Description,
			"price":       product.Price,
			"stock":       product.Stock,
		}).Error; err != nil {
		return false, err
	}
	product.ID = existing.ID
	product.PrimaryImageID = existing.PrimaryImageID
	return false, nil
}

func (r *productRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, fields map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) List(dbc dbctx.Context, params ListParams) ([]*domain.Product, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PerPage < 1 || params.PerPage > 200 {
		params.PerPage = 50
	}

	q := transaction.WithContext(dbc.Ctx).Model(&domain.Product{})
	if s := strings.TrimSpace(params.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*domain.Product
	if err := q.
		Order("sku ASC").
		Offset((params.Page - 1) * params.PerPage).
		Limit(params.PerPage).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

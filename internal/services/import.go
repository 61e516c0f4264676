package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/hashutil"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
	"github.com/bytecart/catalog-backend/internal/realtime"
)

// progressEvery is the row cadence for progress logging and notification.
const progressEvery = 100

type RunStats struct {
	Total         int `json:"total"`
	Imported      int `json:"imported"`
	Updated       int `json:"updated"`
	Invalid       int `json:"invalid"`
	Duplicates    int `json:"duplicates"`
	ImageFailures int `json:"image_failures"`
}

type RunOptions struct {
	// RunID tags progress events; a fresh one is generated when empty.
	RunID string
	// ImageDir resolves relative image paths from rows.
	ImageDir string
}

// ProgressNotifier receives progress events during a run. Optional.
type ProgressNotifier interface {
	PublishImportProgress(ctx context.Context, ev realtime.ImportProgress) error
}

type ProductImportService interface {
	Run(ctx context.Context, src RowSource, opts RunOptions) (*RunStats, error)
	// AttachImage links a completed upload's variants to an existing product,
	// rendering the variants first when the upload has none yet, and promotes
	// the original variant to primary image if the product lacks one.
	AttachImage(ctx context.Context, productID uuid.UUID, token uuid.UUID) (*domain.Product, []*domain.ProductImage, error)
}

type productImportService struct {
	db       *gorm.DB
	log      *logger.Logger
	products repos.ProductRepo
	images   repos.ProductImageRepo
	uploadsR repos.UploadRepo
	engine   ChunkedUploadService
	variants VariantService
	notifier ProgressNotifier
}

func NewProductImportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	productRepo repos.ProductRepo,
	imageRepo repos.ProductImageRepo,
	uploadRepo repos.UploadRepo,
	engine ChunkedUploadService,
	variants VariantService,
	notifier ProgressNotifier,
) ProductImportService {
	serviceLog := baseLog.With("service", "ProductImportService")
	return &productImportService{
		db:       db,
		log:      serviceLog,
		products: productRepo,
		images:   imageRepo,
		uploadsR: uploadRepo,
		engine:   engine,
		variants: variants,
		notifier: notifier,
	}
}

// run carries the mutable state of one import: counters, the in-run SKU set
// and the reuse cache. All of it is scoped to this invocation, never shared
// across runs.
type run struct {
	id       string
	imageDir string
	stats    RunStats
	seenSKUs map[string]bool
	cache    *AssetCache
}

func (s *productImportService) Run(ctx context.Context, src RowSource, opts RunOptions) (*RunStats, error) {
	r := &run{
		id:       opts.RunID,
		imageDir: opts.ImageDir,
		seenSKUs: map[string]bool{},
		cache:    NewAssetCache(s.log),
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}

	if err := r.cache.Preload(dbctx.Context{Ctx: ctx}, s.uploadsR); err != nil {
		return nil, fmt.Errorf("preload upload cache: %w", err)
	}

	s.log.Info("Starting import", "run_id", r.id)

	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			r.stats.Total++
			r.stats.Invalid++
			s.log.Warn("Unreadable row", "run_id", r.id, "row", rowErr.Line, "error", rowErr.Err)
			continue
		}
		if err != nil {
			return &r.stats, fmt.Errorf("read row source: %w", err)
		}

		r.stats.Total++
		s.processRow(ctx, r, row)

		if r.stats.Total%progressEvery == 0 {
			s.log.Info("Import progress",
				"run_id", r.id,
				"processed", r.stats.Total,
				"imported", r.stats.Imported,
				"updated", r.stats.Updated,
			)
			s.notify(ctx, r, false)
		}
	}

	s.notify(ctx, r, true)
	s.log.Info("Import completed",
		"run_id", r.id,
		"total", r.stats.Total,
		"imported", r.stats.Imported,
		"updated", r.stats.Updated,
		"invalid", r.stats.Invalid,
		"duplicates", r.stats.Duplicates,
		"image_failures", r.stats.ImageFailures,
	)
	return &r.stats, nil
}

func (s *productImportService) notify(ctx context.Context, r *run, done bool) {
	if s.notifier == nil {
		return
	}
	ev := realtime.ImportProgress{
		RunID:      r.id,
		Processed:  r.stats.Total,
		Imported:   r.stats.Imported,
		Updated:    r.stats.Updated,
		Invalid:    r.stats.Invalid,
		Duplicates: r.stats.Duplicates,
		Done:       done,
	}
	if err := s.notifier.PublishImportProgress(ctx, ev); err != nil {
		s.log.Warn("Progress publish failed", "run_id", r.id, "error", err)
	}
}

func (s *productImportService) processRow(ctx context.Context, r *run, row *Row) {
	dbc := dbctx.Context{Ctx: ctx}

	price, priceErr := strconv.ParseFloat(row.PriceRaw, 64)
	if row.SKU == "" || row.Name == "" || priceErr != nil || price < 0 {
		r.stats.Invalid++
		s.log.Warn("Row validation failed", "run_id", r.id, "row", row.Line, "sku", row.SKU)
		return
	}

	if r.seenSKUs[row.SKU] {
		r.stats.Duplicates++
		s.log.Info("Duplicate SKU in run", "run_id", r.id, "row", row.Line, "sku", row.SKU)
		return
	}
	r.seenSKUs[row.SKU] = true

	stock := 0
	if row.StockRaw != "" {
		if v, err := strconv.Atoi(row.StockRaw); err == nil {
			stock = v
		}
	}

	product := &domain.Product{
		SKU:         row.SKU,
		Name:        row.Name,
		Description: row.Description,
		Price:       price,
		Stock:       stock,
	}
	created, err := s.products.UpsertBySKU(dbc, product)
	if err != nil {
		r.stats.Invalid++
		s.log.Error("Upsert failed", "run_id", r.id, "row", row.Line, "sku", row.SKU, "error", err)
		return
	}
	if created {
		r.stats.Imported++
	} else {
		r.stats.Updated++
	}

	if row.ImagePath == "" {
		return
	}
	// Image failures never abort the run; they are counted and logged with
	// row context.
	if err := s.processRowImage(ctx, r, product, row.ImagePath); err != nil {
		r.stats.ImageFailures++
		s.log.Error("Failed to process row image",
			"run_id", r.id,
			"row", row.Line,
			"sku", row.SKU,
			"image_path", row.ImagePath,
			"error", err,
		)
	}
}

func (s *productImportService) processRowImage(ctx context.Context, r *run, product *domain.Product, imagePath string) error {
	dbc := dbctx.Context{Ctx: ctx}

	fullPath := imagePath
	if _, err := os.Stat(fullPath); err != nil && r.imageDir != "" {
		fullPath = filepath.Join(r.imageDir, imagePath)
	}
	if _, err := os.Stat(fullPath); err != nil {
		return fmt.Errorf("image file not found: %s", imagePath)
	}
	filename := filepath.Base(imagePath)

	// Idempotent: the product may already carry this asset from an earlier run.
	attached, err := s.images.HasAttachedOriginal(dbc, filename, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		return err
	}
	if attached {
		s.log.Debug("Image already attached", "sku", product.SKU, "filename", filename)
		return nil
	}

	checksum, err := hashFile(fullPath)
	if err != nil {
		return fmt.Errorf("hash image: %w", err)
	}

	// Reuse never needs the file bytes in memory.
	if ref, ok := r.cache.Lookup(filename); ok {
		if ref.Checksum == checksum {
			return s.reuseAsset(ctx, r, ref, product)
		}
		// Same name, different bytes: fall through to a fresh upload rather
		// than silently sharing the asset.
		s.log.Warn("Cached asset checksum differs from source file; uploading fresh",
			"filename", filename, "sku", product.SKU)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	upload, err := s.uploadThroughEngine(ctx, filename, fullPath, content, checksum)
	if err != nil {
		return err
	}

	if _, err := s.variants.RenderVariants(dbc, upload); err != nil {
		return err
	}
	if err := s.variants.AttachToProduct(dbc, upload.ID, product.ID); err != nil {
		return err
	}
	if err := s.setPrimaryImage(dbc, upload.ID, product); err != nil {
		return err
	}

	r.cache.Register(AssetRef{
		UploadID: upload.ID,
		Token:    upload.Token,
		Filename: filename,
		Checksum: checksum,
	})
	s.log.Info("Processed and attached image", "sku", product.SKU, "filename", filename)
	return nil
}

// reuseAsset attaches an already-completed upload to another product without
// moving bytes. Variants are rendered lazily if the asset predates rendering.
func (s *productImportService) reuseAsset(ctx context.Context, r *run, ref AssetRef, product *domain.Product) error {
	dbc := dbctx.Context{Ctx: ctx}

	existing, err := s.images.ListByUpload(dbc, ref.UploadID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		upload, err := s.uploadsR.GetByToken(dbc, ref.Token)
		if err != nil {
			return fmt.Errorf("load cached upload: %w", err)
		}
		if _, err := s.variants.RenderVariants(dbc, upload); err != nil {
			return err
		}
	}

	linked, err := s.variants.FanOut(dbc, ref.UploadID, product.ID)
	if err != nil {
		return err
	}
	if err := s.setPrimaryImage(dbc, ref.UploadID, product); err != nil {
		return err
	}
	s.log.Debug("Reused cached asset", "sku", product.SKU, "filename", ref.Filename, "links", linked)
	return nil
}

func (s *productImportService) AttachImage(ctx context.Context, productID uuid.UUID, token uuid.UUID) (*domain.Product, []*domain.ProductImage, error) {
	dbc := dbctx.Context{Ctx: ctx}

	product, err := s.products.GetByID(dbc, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	if err != nil {
		return nil, nil, err
	}

	upload, err := s.uploadsR.GetByToken(dbc, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: upload %s", ErrNotFound, token)
	}
	if err != nil {
		return nil, nil, err
	}
	if upload.Status != domain.UploadStatusCompleted {
		return nil, nil, fmt.Errorf("%w: upload must be completed before attaching", ErrInvalidArgument)
	}

	// Render lazily when the upload has never been through variant
	// generation.
	existing, err := s.images.ListByUpload(dbc, upload.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(existing) == 0 {
		if _, err := s.variants.RenderVariants(dbc, upload); err != nil {
			return nil, nil, err
		}
	}

	// Claim any still-unattached variants, then copy links for variants
	// already owned by other products. Both steps are idempotent.
	if err := s.variants.AttachToProduct(dbc, upload.ID, product.ID); err != nil {
		return nil, nil, err
	}
	if _, err := s.variants.FanOut(dbc, upload.ID, product.ID); err != nil {
		return nil, nil, err
	}
	if err := s.setPrimaryImage(dbc, upload.ID, product); err != nil {
		return nil, nil, err
	}

	images, err := s.images.ListByOwner(dbc, upload.ID, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("Attached upload to product", "product_id", product.ID, "token", token, "images", len(images))
	return product, images, nil
}

// uploadThroughEngine drives the same chunk protocol an external caller
// would, locally and synchronously.
func (s *productImportService) uploadThroughEngine(ctx context.Context, filename, fullPath string, content []byte, checksum string) (*domain.Upload, error) {
	mimeType := mimeTypeForFile(fullPath)

	upload, err := s.engine.Initialize(ctx, InitializeInput{
		Filename:  filename,
		TotalSize: int64(len(content)),
		MimeType:  mimeType,
		Checksum:  checksum,
		Metadata:  map[string]interface{}{"source": "import"},
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i*ChunkSize < len(content); i++ {
		start := i * ChunkSize
		end := start + ChunkSize
		if end > len(content) {
			end = len(content)
		}
		chunk := content[start:end]
		if _, err := s.engine.ReceiveChunk(ctx, upload.Token, i, chunk, hashutil.SumHex(chunk)); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	// Re-read the session; assembly updated status and metadata.
	fresh, err := s.uploadsR.GetByToken(dbctx.Context{Ctx: ctx}, upload.Token)
	if err != nil {
		return nil, err
	}
	if fresh.Status != domain.UploadStatusCompleted {
		return nil, fmt.Errorf("upload failed to complete for %s (status %s)", filename, fresh.Status)
	}
	return fresh, nil
}

func (s *productImportService) setPrimaryImage(dbc dbctx.Context, uploadID uuid.UUID, product *domain.Product) error {
	if product.PrimaryImageID != nil {
		return nil
	}
	mine, err := s.images.ListByOwner(dbc, uploadID, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		return err
	}
	for _, img := range mine {
		if img.Variant == domain.VariantOriginal {
			if err := s.products.UpdateFields(dbc, product.ID, map[string]interface{}{
				"primary_image_id": img.ID,
			}); err != nil {
				return err
			}
			product.PrimaryImageID = &img.ID
			return nil
		}
	}
	return nil
}

func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashutil.SumReaderHex(f)
}

func mimeTypeForFile(p string) string {
	switch filepath.Ext(p) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

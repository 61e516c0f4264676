package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	_ "image/gif"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/blob"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

// variantMaxDims maps variant name to the bounding dimension; 0 means keep
// the source size.
var variantMaxDims = map[string]int{
	domain.VariantOriginal: 0,
	domain.Variant256:      256,
	domain.Variant512:      512,
	domain.Variant1024:     1024,
}

type VariantService interface {
	// RenderVariants decodes a completed upload's artifact and produces one
	// stored image per variant, recording dimensions and byte sizes. The
	// created records start unattached.
	RenderVariants(dbc dbctx.Context, upload *domain.Upload) ([]*domain.ProductImage, error)
	// AttachToProduct claims every still-unattached variant of the upload for
	// the product.
	AttachToProduct(dbc dbctx.Context, uploadID uuid.UUID, productID uuid.UUID) error
	// FanOut links all of the asset's variants to an additional product
	// without re-rendering or moving bytes: a set-difference over variants
	// already attached to that product, then a bulk insert of the missing
	// links. Returns the number of links created.
	FanOut(dbc dbctx.Context, uploadID uuid.UUID, productID uuid.UUID) (int, error)
}

type variantService struct {
	db     *gorm.DB
	log    *logger.Logger
	store  blob.Store
	images repos.ProductImageRepo
}

func NewVariantService(db *gorm.DB, baseLog *logger.Logger, store blob.Store, imageRepo repos.ProductImageRepo) VariantService {
	serviceLog := baseLog.With("service", "VariantService")
	return &variantService{db: db, log: serviceLog, store: store, images: imageRepo}
}

func (vs *variantService) RenderVariants(dbc dbctx.Context, upload *domain.Upload) ([]*domain.ProductImage, error) {
	if upload.Status != domain.UploadStatusCompleted {
		return nil, fmt.Errorf("%w: upload must be completed before rendering", ErrInvalidArgument)
	}
	if !strings.HasPrefix(upload.MimeType, "image/") {
		return nil, fmt.Errorf("%w: upload is not an image", ErrInvalidArgument)
	}

	srcKey := artifactKey(upload)
	rc, err := vs.store.Open(dbc.Ctx, srcKey)
	if err != nil {
		return nil, fmt.Errorf("open artifact %q: %w", srcKey, err)
	}
	defer rc.Close()

	src, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	records := make([]*domain.ProductImage, 0, len(domain.VariantNames))
	writtenKeys := make([]string, 0, len(domain.VariantNames))
	cleanup := func() {
		for _, k := range writtenKeys {
			_ = vs.store.Delete(dbc.Ctx, k)
		}
	}

	for _, variant := range domain.VariantNames {
		scaled, w, h := scaleToFit(src, variantMaxDims[variant])

		encoded, err := encodeForFilename(scaled, upload.Filename)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("encode %s variant: %w", variant, err)
		}

		key := variantKey(upload.Token, upload.Filename, variant)
		if err := vs.store.Write(dbc.Ctx, key, bytes.NewReader(encoded)); err != nil {
			cleanup()
			return nil, fmt.Errorf("store %s variant: %w", variant, err)
		}
		writtenKeys = append(writtenKeys, key)

		records = append(records, &domain.ProductImage{
			ID:         uuid.New(),
			UploadID:   upload.ID,
			Variant:    variant,
			StorageKey: key,
			Width:      w,
			Height:     h,
			SizeBytes:  int64(len(encoded)),
		})

		vs.log.Info("Created image variant",
			"token", upload.Token,
			"variant", variant,
			"dimensions", fmt.Sprintf("%dx%d", w, h),
			"size", len(encoded),
		)
	}

	if err := vs.images.CreateBatch(dbc, records); err != nil {
		cleanup()
		return nil, fmt.Errorf("record variants: %w", err)
	}
	return records, nil
}

func (vs *variantService) AttachToProduct(dbc dbctx.Context, uploadID uuid.UUID, productID uuid.UUID) error {
	if err := vs.images.AttachUnowned(dbc, uploadID, domain.OwnerTypeProduct, productID); err != nil {
		return fmt.Errorf("attach variants: %w", err)
	}
	vs.log.Info("Attached images to product", "upload_id", uploadID, "product_id", productID)
	return nil
}

func (vs *variantService) FanOut(dbc dbctx.Context, uploadID uuid.UUID, productID uuid.UUID) (int, error) {
	all, err := vs.images.ListByUpload(dbc, uploadID)
	if err != nil {
		return 0, err
	}

	// One template per variant; earliest row wins.
	templates := map[string]*domain.ProductImage{}
	for _, img := range all {
		if _, ok := templates[img.Variant]; !ok {
			templates[img.Variant] = img
		}
	}

	attached, err := vs.images.ListByOwner(dbc, uploadID, domain.OwnerTypeProduct, productID)
	if err != nil {
		return 0, err
	}
	have := map[string]bool{}
	for _, img := range attached {
		have[img.Variant] = true
	}

	ownerType := domain.OwnerTypeProduct
	links := make([]*domain.ProductImage, 0, len(templates))
	for _, variant := range domain.VariantNames {
		tpl, ok := templates[variant]
		if !ok || have[variant] {
			continue
		}
		links = append(links, &domain.ProductImage{
			ID:         uuid.New(),
			UploadID:   tpl.UploadID,
			OwnerType:  &ownerType,
			OwnerID:    &productID,
			Variant:    tpl.Variant,
			StorageKey: tpl.StorageKey,
			Width:      tpl.Width,
			Height:     tpl.Height,
			SizeBytes:  tpl.SizeBytes,
		})
	}

	if err := vs.images.CreateBatch(dbc, links); err != nil {
		return 0, err
	}
	return len(links), nil
}

// artifactKey resolves the assembled artifact's storage location from session
// metadata, falling back to the deterministic layout.
func artifactKey(upload *domain.Upload) string {
	if len(upload.Metadata) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(upload.Metadata, &meta); err == nil {
			if p, ok := meta["final_path"].(string); ok && p != "" {
				return p
			}
		}
	}
	return finalKey(upload.Token, upload.Filename)
}

func variantKey(token uuid.UUID, filename, variant string) string {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("images/%s/%s_%s%s", token, base, variant, ext)
}

// scaleToFit downsizes src so both dimensions fit maxDim, preserving aspect
// ratio. Images already inside the bound (and the original variant) pass
// through untouched.
func scaleToFit(src image.Image, maxDim int) (image.Image, int, int) {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return src, w, h
	}

	var newW, newH int
	if w >= h {
		newW = maxDim
		newH = (h*maxDim + w/2) / w
	} else {
		newH = maxDim
		newW = (w*maxDim + h/2) / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst, newW, newH
}

func encodeForFilename(img image.Image, filename string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

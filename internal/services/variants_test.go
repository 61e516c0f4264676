package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/data/repos/testutil"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/blob"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
)

type variantFixture struct {
	db       *gorm.DB
	store    *blob.FSStore
	images   repos.ProductImageRepo
	variants VariantService
}

func newVariantFixture(t *testing.T) *variantFixture {
	t.Helper()
	handle := testutil.MemDB(t)
	log := testutil.Logger(t)

	store, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	images := repos.NewProductImageRepo(handle, log)
	return &variantFixture{
		db:       handle,
		store:    store,
		images:   images,
		variants: NewVariantService(handle, log, store, images),
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// completedImageUpload stores a PNG artifact and returns the matching
// completed session record.
func (f *variantFixture) completedImageUpload(t *testing.T, w, h int) *domain.Upload {
	t.Helper()
	ctx := context.Background()

	upload := &domain.Upload{
		ID:       uuid.New(),
		Token:    uuid.New(),
		Filename: "pic.png",
		MimeType: "image/png",
		Status:   domain.UploadStatusCompleted,
	}
	raw := encodePNG(t, w, h)
	upload.TotalSize = int64(len(raw))
	if err := f.store.Write(ctx, finalKey(upload.Token, upload.Filename), bytes.NewReader(raw)); err != nil {
		t.Fatalf("store artifact: %v", err)
	}
	if err := f.db.WithContext(ctx).Create(upload).Error; err != nil {
		t.Fatalf("create upload: %v", err)
	}
	return upload
}

func TestRenderVariants_ProducesAllVariantsWithAspectRatio(t *testing.T) {
	f := newVariantFixture(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	upload := f.completedImageUpload(t, 1600, 1200)
	records, err := f.variants.RenderVariants(dbc, upload)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(records) != len(domain.VariantNames) {
		t.Fatalf("expected %d variants, got %d", len(domain.VariantNames), len(records))
	}

	wantDims := map[string][2]int{
		domain.VariantOriginal: {1600, 1200},
		domain.Variant256:      {256, 192},
		domain.Variant512:      {512, 384},
		domain.Variant1024:     {1024, 768},
	}
	for _, rec := range records {
		want := wantDims[rec.Variant]
		if rec.Width != want[0] || rec.Height != want[1] {
			t.Fatalf("%s: expected %dx%d, got %dx%d", rec.Variant, want[0], want[1], rec.Width, rec.Height)
		}
		if rec.Attached() {
			t.Fatalf("%s: variant should start unattached", rec.Variant)
		}
		if rec.SizeBytes <= 0 {
			t.Fatalf("%s: missing byte size", rec.Variant)
		}
		if _, err := f.store.Open(ctx, rec.StorageKey); err != nil {
			t.Fatalf("%s: stored object missing: %v", rec.Variant, err)
		}
	}
}

func TestRenderVariants_NeverUpscales(t *testing.T) {
	f := newVariantFixture(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	upload := f.completedImageUpload(t, 100, 80)
	records, err := f.variants.RenderVariants(dbc, upload)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, rec := range records {
		if rec.Width != 100 || rec.Height != 80 {
			t.Fatalf("%s: expected 100x80 passthrough, got %dx%d", rec.Variant, rec.Width, rec.Height)
		}
	}
}

func TestRenderVariants_RejectsUnusableUploads(t *testing.T) {
	f := newVariantFixture(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	pending := &domain.Upload{ID: uuid.New(), Token: uuid.New(), Filename: "pic.png", MimeType: "image/png", Status: domain.UploadStatusPending}
	if _, err := f.variants.RenderVariants(dbc, pending); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for pending upload, got %v", err)
	}

	pdf := &domain.Upload{ID: uuid.New(), Token: uuid.New(), Filename: "doc.pdf", MimeType: "application/pdf", Status: domain.UploadStatusCompleted}
	if _, err := f.variants.RenderVariants(dbc, pdf); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for non-image, got %v", err)
	}
}

func TestFanOut_LinksVariantsOncePerProduct(t *testing.T) {
	f := newVariantFixture(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	upload := f.completedImageUpload(t, 600, 600)
	if _, err := f.variants.RenderVariants(dbc, upload); err != nil {
		t.Fatalf("render: %v", err)
	}

	first := uuid.New()
	second := uuid.New()

	if err := f.variants.AttachToProduct(dbc, upload.ID, first); err != nil {
		t.Fatalf("attach: %v", err)
	}
	firstImages, err := f.images.ListByOwner(dbc, upload.ID, domain.OwnerTypeProduct, first)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(firstImages) != len(domain.VariantNames) {
		t.Fatalf("expected %d attached variants, got %d", len(domain.VariantNames), len(firstImages))
	}

	created, err := f.variants.FanOut(dbc, upload.ID, second)
	if err != nil {
		t.Fatalf("fan out: %v", err)
	}
	if created != len(domain.VariantNames) {
		t.Fatalf("expected %d links, got %d", len(domain.VariantNames), created)
	}

	// Second fan-out to the same product is a no-op.
	created, err = f.variants.FanOut(dbc, upload.ID, second)
	if err != nil {
		t.Fatalf("repeat fan out: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected idempotent fan-out, got %d new links", created)
	}

	secondImages, err := f.images.ListByOwner(dbc, upload.ID, domain.OwnerTypeProduct, second)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(secondImages) != len(domain.VariantNames) {
		t.Fatalf("expected %d links for second product, got %d", len(domain.VariantNames), len(secondImages))
	}
	// Links copy storage keys rather than duplicating objects.
	for _, img := range secondImages {
		if img.StorageKey == "" {
			t.Fatalf("fan-out link missing storage key")
		}
	}
}

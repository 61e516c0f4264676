package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/domain"
)

func SeedUpload(tb testing.TB, ctx context.Context, tx *gorm.DB, status string) *domain.Upload {
	tb.Helper()
	u := &domain.Upload{
		ID:        uuid.New(),
		Token:     uuid.New(),
		Filename:  "photo.jpg",
		MimeType:  "image/jpeg",
		TotalSize: 2048,
		Checksum:  "0000000000000000000000000000000000000000000000000000000000000000",
		Status:    status,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed upload: %v", err)
	}
	return u
}

func SeedChunk(tb testing.TB, ctx context.Context, tx *gorm.DB, uploadID uuid.UUID, index int, size int64) *domain.UploadChunk {
	tb.Helper()
	c := &domain.UploadChunk{
		ID:       uuid.New(),
		UploadID: uploadID,
		Index:    index,
		Size:     size,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed chunk: %v", err)
	}
	return c
}

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, sku string) *domain.Product {
	tb.Helper()
	p := &domain.Product{
		ID:    uuid.New(),
		SKU:   sku,
		Name:  "product",
		Price: 9.99,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedProductImage(tb testing.TB, ctx context.Context, tx *gorm.DB, uploadID uuid.UUID, variant string, owner *uuid.UUID) *domain.ProductImage {
	tb.Helper()
	pi := &domain.ProductImage{
		ID:         uuid.New(),
		UploadID:   uploadID,
		Variant:    variant,
		StorageKey: "images/" + uploadID.String() + "/photo_" + variant + ".jpg",
		Width:      100,
		Height:     100,
		SizeBytes:  1234,
	}
	if owner != nil {
		ownerType := domain.OwnerTypeProduct
		pi.OwnerType = &ownerType
		pi.OwnerID = owner
	}
	if err := tx.WithContext(ctx).Create(pi).Error; err != nil {
		tb.Fatalf("seed product image: %v", err)
	}
	return pi
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

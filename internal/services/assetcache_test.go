package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/data/repos/testutil"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
)

func TestAssetCache_PreloadIndexesCompletedUploads(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	uploadRepo := repos.NewUploadRepo(tx, testutil.Logger(t))

	done := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	testutil.SeedUpload(t, ctx, tx, domain.UploadStatusFailed)

	cache := NewAssetCache(testutil.Logger(t))
	if err := cache.Preload(dbc, uploadRepo); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached asset, got %d", cache.Len())
	}

	ref, ok := cache.Lookup(done.Filename)
	if !ok {
		t.Fatalf("expected cache hit for %q", done.Filename)
	}
	if ref.UploadID != done.ID || ref.Checksum != done.Checksum {
		t.Fatalf("unexpected ref: %+v", ref)
	}

	if _, ok := cache.Lookup("unknown.png"); ok {
		t.Fatalf("expected miss for unknown filename")
	}
}

func TestAssetCache_RegisterOverwritesByFilename(t *testing.T) {
	cache := NewAssetCache(testutil.Logger(t))

	first := AssetRef{UploadID: uuid.New(), Token: uuid.New(), Filename: "pic.png", Checksum: "aaa"}
	second := AssetRef{UploadID: uuid.New(), Token: uuid.New(), Filename: "pic.png", Checksum: "bbb"}
	cache.Register(first)
	cache.Register(second)

	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
	ref, ok := cache.Lookup("pic.png")
	if !ok || ref.Checksum != "bbb" {
		t.Fatalf("expected latest registration to win, got %+v", ref)
	}
}

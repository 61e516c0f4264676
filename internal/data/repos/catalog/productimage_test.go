package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/bytecart/catalog-backend/internal/data/repos/testutil"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
)

func TestProductImageRepo_AttachUnownedClaimsOnlyUnattachedRows(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProductImageRepo(tx, testutil.Logger(t))

	upload := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	owner := testutil.SeedProduct(t, ctx, tx, "SKU-A")
	other := testutil.SeedProduct(t, ctx, tx, "SKU-B")

	// One variant already belongs to another product, one is unattached.
	testutil.SeedProductImage(t, ctx, tx, upload.ID, domain.VariantOriginal, testutil.PtrUUID(other.ID))
	free := testutil.SeedProductImage(t, ctx, tx, upload.ID, domain.Variant256, nil)

	if err := repo.AttachUnowned(dbc, upload.ID, domain.OwnerTypeProduct, owner.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	mine, err := repo.ListByOwner(dbc, upload.ID, domain.OwnerTypeProduct, owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != free.ID {
		t.Fatalf("expected only the unattached variant to be claimed, got %d rows", len(mine))
	}

	// The other product's link is untouched.
	theirs, err := repo.ListByOwner(dbc, upload.ID, domain.OwnerTypeProduct, other.ID)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(theirs) != 1 || theirs[0].Variant != domain.VariantOriginal {
		t.Fatalf("existing ownership changed: %+v", theirs)
	}
}

func TestProductImageRepo_HasAttachedOriginal(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProductImageRepo(tx, testutil.Logger(t))

	upload := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	product := testutil.SeedProduct(t, ctx, tx, "SKU-A")

	got, err := repo.HasAttachedOriginal(dbc, upload.Filename, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got {
		t.Fatalf("expected no attached original yet")
	}

	// A non-original variant does not satisfy the check.
	testutil.SeedProductImage(t, ctx, tx, upload.ID, domain.Variant256, testutil.PtrUUID(product.ID))
	got, err = repo.HasAttachedOriginal(dbc, upload.Filename, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got {
		t.Fatalf("non-original variant should not count")
	}

	testutil.SeedProductImage(t, ctx, tx, upload.ID, domain.VariantOriginal, testutil.PtrUUID(product.ID))
	got, err = repo.HasAttachedOriginal(dbc, upload.Filename, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !got {
		t.Fatalf("expected attached original to be found")
	}

	// A different product sharing the asset does not count for this one.
	other := testutil.SeedProduct(t, ctx, tx, "SKU-B")
	got, err = repo.HasAttachedOriginal(dbc, upload.Filename, domain.OwnerTypeProduct, other.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got {
		t.Fatalf("attachment should be scoped per product")
	}
}

func TestProductImageRepo_ListForOwnerAndDelete(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProductImageRepo(tx, testutil.Logger(t))

	uploadA := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	uploadB := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	product := testutil.SeedProduct(t, ctx, tx, "SKU-A")

	a := testutil.SeedProductImage(t, ctx, tx, uploadA.ID, domain.VariantOriginal, testutil.PtrUUID(product.ID))
	b := testutil.SeedProductImage(t, ctx, tx, uploadB.ID, domain.VariantOriginal, testutil.PtrUUID(product.ID))

	all, err := repo.ListForOwner(dbc, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected images across uploads, got %d", len(all))
	}

	if err := repo.DeleteByIDs(dbc, []uuid.UUID{a.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err = repo.ListForOwner(dbc, domain.OwnerTypeProduct, product.ID)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("expected only the second image to remain, got %d rows", len(all))
	}
}

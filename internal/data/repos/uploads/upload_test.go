package uploads

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos/testutil"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
)

func TestUploadRepo_CreateAndGetByToken(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUploadRepo(tx, testutil.Logger(t))

	upload := &domain.Upload{
		ID:        uuid.New(),
		Token:     uuid.New(),
		Filename:  "photo.jpg",
		MimeType:  "image/jpeg",
		TotalSize: 4096,
		Checksum:  "1111111111111111111111111111111111111111111111111111111111111111",
		Status:    domain.UploadStatusPending,
	}
	if err := repo.Create(dbc, upload); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByToken(dbc, upload.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != upload.ID || got.Filename != "photo.jpg" {
		t.Fatalf("unexpected upload: %+v", got)
	}

	if _, err := repo.GetByToken(dbc, uuid.New()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestUploadRepo_UpdateFields(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUploadRepo(tx, testutil.Logger(t))

	upload := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusPending)
	if err := repo.UpdateFields(dbc, upload.ID, map[string]interface{}{
		"status":        domain.UploadStatusUploading,
		"uploaded_size": int64(1024),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByToken(dbc, upload.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.UploadStatusUploading || got.UploadedSize != 1024 {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestUploadRepo_ListCompleted(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUploadRepo(tx, testutil.Logger(t))

	done := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusCompleted)
	testutil.SeedUpload(t, ctx, tx, domain.UploadStatusPending)
	testutil.SeedUpload(t, ctx, tx, domain.UploadStatusFailed)

	completed, err := repo.ListCompleted(dbc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != done.ID {
		t.Fatalf("expected only the completed upload, got %d rows", len(completed))
	}
}

func TestUploadChunkRepo_DeliveryBookkeeping(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUploadChunkRepo(tx, testutil.Logger(t))

	upload := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusPending)
	chunks := []*domain.UploadChunk{
		{ID: uuid.New(), UploadID: upload.ID, Index: 0, Size: 1024},
		{ID: uuid.New(), UploadID: upload.ID, Index: 1, Size: 1024},
	}
	if err := repo.CreateBatch(dbc, chunks); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	// Nothing delivered yet.
	total, err := repo.SumDelivered(dbc, upload.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 delivered bytes, got %d", total)
	}

	if err := repo.MarkDelivered(dbc, chunks[0].ID, "abc", 1024); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	total, err = repo.SumDelivered(dbc, upload.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 1024 {
		t.Fatalf("expected 1024 delivered bytes, got %d", total)
	}

	got, err := repo.GetByIndexForUpdate(dbc, upload.ID, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Delivered || got.Checksum != "abc" {
		t.Fatalf("delivery not recorded: %+v", got)
	}

	if _, err := repo.GetByIndexForUpdate(dbc, upload.ID, 9); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for unknown index, got %v", err)
	}
}

func TestUploadChunkRepo_ListByUploadOrdersByIndex(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUploadChunkRepo(tx, testutil.Logger(t))

	upload := testutil.SeedUpload(t, ctx, tx, domain.UploadStatusPending)
	for _, i := range []int{2, 0, 1} {
		testutil.SeedChunk(t, ctx, tx, upload.ID, i, 512)
	}

	chunks, err := repo.ListByUpload(dbc, upload.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("expected ascending index order, got %d at position %d", c.Index, i)
		}
	}
}

package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSStore_WriteOpenRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	content := []byte("chunk payload")
	if err := store.Write(ctx, "temp_uploads/abc/chunk_0", bytes.NewReader(content)); err != nil {
		t.Fatalf("write: %v", err)
	}

	rc, err := store.Open(ctx, "temp_uploads/abc/chunk_0")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestFSStore_OpenMissingKey(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Open(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_WriteOverwritesExisting(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Write(ctx, "k", strings.NewReader("old")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, "k", strings.NewReader("new")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	rc, err := store.Open(ctx, "k")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestFSStore_ListKeysAndDeletePrefix(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	for _, key := range []string{
		"temp_uploads/a/chunk_0",
		"temp_uploads/a/chunk_1",
		"temp_uploads/b/chunk_0",
		"uploads/a/file.bin",
	} {
		if err := store.Write(ctx, key, strings.NewReader(key)); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}

	keys, err := store.ListKeys(ctx, "temp_uploads/a/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 2 || keys[0] != "temp_uploads/a/chunk_0" || keys[1] != "temp_uploads/a/chunk_1" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	if err := store.DeletePrefix(ctx, "temp_uploads/a/"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}

	keys, err = store.ListKeys(ctx, "temp_uploads/")
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(keys) != 1 || keys[0] != "temp_uploads/b/chunk_0" {
		t.Fatalf("delete prefix touched the wrong keys: %v", keys)
	}

	// Objects outside the prefix survive.
	if _, err := store.Open(ctx, "uploads/a/file.bin"); err != nil {
		t.Fatalf("unrelated object lost: %v", err)
	}
}

func TestFSStore_DeleteIsIdempotent(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.Write(ctx, "k", strings.NewReader("v")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

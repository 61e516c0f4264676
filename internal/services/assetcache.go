package services

import (
	"github.com/google/uuid"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

// AssetRef identifies an already-completed upload that later rows can attach
// without re-transferring bytes.
type AssetRef struct {
	UploadID uuid.UUID
	Token    uuid.UUID
	Filename string
	Checksum string
}

// AssetCache is scoped to one import run: preloaded once from all completed
// uploads, appended to as the run creates new assets. Callers must verify the
// checksum before reusing a hit; two different files can share a filename.
type AssetCache struct {
	log        *logger.Logger
	byFilename map[string]AssetRef
}

func NewAssetCache(baseLog *logger.Logger) *AssetCache {
	return &AssetCache{
		log:        baseLog.With("service", "AssetCache"),
		byFilename: map[string]AssetRef{},
	}
}

// Preload scans every completed upload into memory, trading one pass for a
// lookup query per row.
func (c *AssetCache) Preload(dbc dbctx.Context, uploadRepo repos.UploadRepo) error {
	completed, err := uploadRepo.ListCompleted(dbc)
	if err != nil {
		return err
	}
	for _, u := range completed {
		c.byFilename[u.Filename] = AssetRef{
			UploadID: u.ID,
			Token:    u.Token,
			Filename: u.Filename,
			Checksum: u.Checksum,
		}
	}
	c.log.Info("Preloaded upload cache", "count", len(completed))
	return nil
}

func (c *AssetCache) Lookup(filename string) (AssetRef, bool) {
	ref, ok := c.byFilename[filename]
	return ref, ok
}

func (c *AssetCache) Register(ref AssetRef) {
	c.byFilename[ref.Filename] = ref
}

func (c *AssetCache) Len() int { return len(c.byFilename) }

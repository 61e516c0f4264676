package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/domain"
	"github.com/bytecart/catalog-backend/internal/platform/blob"
	"github.com/bytecart/catalog-backend/internal/platform/dbctx"
	"github.com/bytecart/catalog-backend/internal/platform/hashutil"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
)

// ChunkSize is the fixed chunk size known to both caller and engine, so chunk
// indices and expected sizes are computable by either side without
// negotiation.
const ChunkSize = 1 << 20 // 1 MiB

type InitializeInput struct {
	Filename  string
	TotalSize int64
	MimeType  string
	Checksum  string
	Metadata  map[string]interface{}
}

type ChunkReceipt struct {
	ChunkIndex       int     `json:"chunk_index"`
	AlreadyDelivered bool    `json:"already_delivered"`
	Status           string  `json:"status"`
	Progress         float64 `json:"progress"`
}

type UploadStatus struct {
	Token         uuid.UUID `json:"token"`
	Filename      string    `json:"filename"`
	Status        string    `json:"status"`
	TotalSize     int64     `json:"total_size"`
	UploadedSize  int64     `json:"uploaded_size"`
	Progress      float64   `json:"progress"`
	MissingChunks []int     `json:"missing_chunks"`
}

type ChunkedUploadService interface {
	Initialize(ctx context.Context, in InitializeInput) (*domain.Upload, error)
	ReceiveChunk(ctx context.Context, token uuid.UUID, index int, data []byte, checksum string) (*ChunkReceipt, error)
	GetStatus(ctx context.Context, token uuid.UUID) (*UploadStatus, error)
}

type chunkedUploadService struct {
	db     *gorm.DB
	log    *logger.Logger
	store  blob.Store
	repo   repos.UploadRepo
	chunks repos.UploadChunkRepo
	locks  sessionLocks
}

func NewChunkedUploadService(
	db *gorm.DB,
	baseLog *logger.Logger,
	store blob.Store,
	uploadRepo repos.UploadRepo,
	chunkRepo repos.UploadChunkRepo,
) ChunkedUploadService {
	serviceLog := baseLog.With("service", "ChunkedUploadService")
	return &chunkedUploadService{
		db:     db,
		log:    serviceLog,
		store:  store,
		repo:   uploadRepo,
		chunks: chunkRepo,
		locks:  sessionLocks{entries: map[uuid.UUID]*sessionLock{}},
	}
}

func (s *chunkedUploadService) Initialize(ctx context.Context, in InitializeInput) (*domain.Upload, error) {
	if in.TotalSize <= 0 {
		return nil, fmt.Errorf("%w: total size must be positive", ErrInvalidArgument)
	}
	if len(in.Checksum) != hashutil.HexLen {
		return nil, fmt.Errorf("%w: checksum must be a hex sha-256 digest", ErrInvalidArgument)
	}

	var metadata datatypes.JSON
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata not serializable", ErrInvalidArgument)
		}
		metadata = datatypes.JSON(raw)
	}

	upload := &domain.Upload{
		ID:        uuid.New(),
		Token:     uuid.New(),
		Filename:  in.Filename,
		MimeType:  in.MimeType,
		TotalSize: in.TotalSize,
		Checksum:  in.Checksum,
		Status:    domain.UploadStatusPending,
		Metadata:  metadata,
	}

	totalChunks := int((in.TotalSize + ChunkSize - 1) / ChunkSize)
	chunks := make([]*domain.UploadChunk, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		size := in.TotalSize - int64(i)*ChunkSize
		if size > ChunkSize {
			size = ChunkSize
		}
		chunks = append(chunks, &domain.UploadChunk{
			ID:       uuid.New(),
			UploadID: upload.ID,
			Index:    i,
			Size:     size,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := s.repo.Create(dbc, upload); err != nil {
			return err
		}
		return s.chunks.CreateBatch(dbc, chunks)
	})
	if err != nil {
		return nil, fmt.Errorf("initialize upload: %w", err)
	}

	s.log.Info("Initialized upload",
		"token", upload.Token,
		"filename", in.Filename,
		"total_chunks", totalChunks,
	)
	return upload, nil
}

func (s *chunkedUploadService) ReceiveChunk(ctx context.Context, token uuid.UUID, index int, data []byte, checksum string) (*ChunkReceipt, error) {
	// Verify the payload before touching any state.
	actual := hashutil.SumHex(data)
	if actual != checksum {
		s.log.Error("Chunk checksum mismatch",
			"token", token,
			"chunk_index", index,
			"expected", checksum,
			"actual", actual,
		)
		return nil, fmt.Errorf("%w: chunk %d", ErrIntegrity, index)
	}

	// Steps below run under per-session mutual exclusion; concurrent
	// deliveries to unrelated sessions stay fully parallel.
	release := s.locks.acquire(token)
	defer release()

	var receipt *ChunkReceipt
	var complete bool
	var uploadID uuid.UUID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		upload, err := s.repo.GetByTokenForUpdate(dbc, token)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		uploadID = upload.ID

		chunk, err := s.chunks.GetByIndexForUpdate(dbc, upload.ID, index)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown chunk index %d", ErrInvalidArgument, index)
		}
		if err != nil {
			return err
		}

		// Idempotent re-delivery: same index, same checksum, nothing to do.
		if chunk.Delivered && chunk.Checksum == checksum {
			s.log.Info("Chunk already delivered", "token", token, "chunk_index", index)
			receipt = &ChunkReceipt{
				ChunkIndex:       index,
				AlreadyDelivered: true,
				Status:           upload.Status,
				Progress:         progressPct(upload.UploadedSize, upload.TotalSize),
			}
			return nil
		}

		// Terminal sessions are immutable. Anything past the idempotent
		// receipt above would rewrite payloads and counters after assembly.
		if upload.Terminal() {
			return fmt.Errorf("%w: upload already %s", ErrInvalidArgument, upload.Status)
		}

		// Chunk rows carry the exact size expected at each index; a payload
		// of any other length can only corrupt uploaded_size.
		if int64(len(data)) != chunk.Size {
			return fmt.Errorf("%w: chunk %d expects %d bytes, got %d", ErrInvalidArgument, index, chunk.Size, len(data))
		}

		if err := s.store.Write(dbc.Ctx, chunkKey(token, index), bytes.NewReader(data)); err != nil {
			return fmt.Errorf("persist chunk payload: %w", err)
		}

		if err := s.chunks.MarkDelivered(dbc, chunk.ID, checksum, int64(len(data))); err != nil {
			return err
		}

		if upload.Status == domain.UploadStatusPending {
			if err := s.repo.UpdateFields(dbc, upload.ID, map[string]interface{}{
				"status": domain.UploadStatusUploading,
			}); err != nil {
				return err
			}
			upload.Status = domain.UploadStatusUploading
		}

		uploadedSize, err := s.chunks.SumDelivered(dbc, upload.ID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateFields(dbc, upload.ID, map[string]interface{}{
			"uploaded_size": uploadedSize,
		}); err != nil {
			return err
		}

		s.log.Info("Chunk delivered",
			"token", token,
			"chunk_index", index,
			"uploaded_size", uploadedSize,
			"total_size", upload.TotalSize,
		)

		complete = uploadedSize >= upload.TotalSize
		receipt = &ChunkReceipt{
			ChunkIndex: index,
			Status:     upload.Status,
			Progress:   progressPct(uploadedSize, upload.TotalSize),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if complete {
		if err := s.assemble(ctx, uploadID, token); err != nil {
			return nil, err
		}
		receipt.Status = domain.UploadStatusCompleted
	}
	return receipt, nil
}

// assemble concatenates all chunk payloads in ascending index order, verifies
// the whole-file checksum and finalizes the session. Runs with the session
// lock held; invoked only when completeness is first detected, and a no-op on
// sessions already terminal.
func (s *chunkedUploadService) assemble(ctx context.Context, uploadID uuid.UUID, token uuid.UUID) error {
	var finalPath string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}

		upload, err := s.repo.GetByTokenForUpdate(dbc, token)
		if err != nil {
			return err
		}
		if upload.Terminal() {
			return nil
		}

		chunks, err := s.chunks.ListByUpload(dbc, upload.ID)
		if err != nil {
			return err
		}

		readers := make([]io.Reader, 0, len(chunks))
		closers := make([]io.Closer, 0, len(chunks))
		defer func() {
			for _, c := range closers {
				_ = c.Close()
			}
		}()
		for _, chunk := range chunks {
			rc, err := s.store.Open(ctx, chunkKey(token, chunk.Index))
			if errors.Is(err, blob.ErrNotFound) {
				return &MissingChunkError{Index: chunk.Index}
			}
			if err != nil {
				return fmt.Errorf("open chunk %d: %w", chunk.Index, err)
			}
			readers = append(readers, rc)
			closers = append(closers, rc)
		}

		finalPath = finalKey(token, upload.Filename)
		digest := newDigestReader(io.MultiReader(readers...))
		if err := s.store.Write(ctx, finalPath, digest); err != nil {
			return fmt.Errorf("write assembled artifact: %w", err)
		}

		// The single integrity gate protecting the chunk-transport path.
		if actual := digest.SumHex(); actual != upload.Checksum {
			_ = s.store.Delete(ctx, finalPath)
			s.log.Error("Final file checksum mismatch",
				"token", token,
				"expected", upload.Checksum,
				"actual", actual,
			)
			return fmt.Errorf("%w: final checksum", ErrIntegrity)
		}

		metadata, err := mergeMetadata(upload.Metadata, map[string]interface{}{
			"final_path":   finalPath,
			"completed_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return s.repo.UpdateFields(dbc, upload.ID, map[string]interface{}{
			"status":   domain.UploadStatusCompleted,
			"metadata": metadata,
		})
	})
	if err != nil {
		// The failed status must persist even though the enclosing
		// transaction rolled back.
		if errors.Is(err, ErrIntegrity) {
			if updErr := s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, uploadID, map[string]interface{}{
				"status": domain.UploadStatusFailed,
			}); updErr != nil {
				s.log.Error("Failed to mark upload failed", "token", token, "error", updErr)
			}
		}
		return err
	}

	// Chunk payloads are redundant once the artifact exists.
	if err := s.store.DeletePrefix(ctx, chunkPrefix(token)); err != nil {
		s.log.Warn("Chunk cleanup failed", "token", token, "error", err)
	}

	s.log.Info("File assembled successfully", "token", token, "path", finalPath)
	return nil
}

func (s *chunkedUploadService) GetStatus(ctx context.Context, token uuid.UUID) (*UploadStatus, error) {
	dbc := dbctx.Context{Ctx: ctx}

	upload, err := s.repo.GetByToken(dbc, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByUpload(dbc, upload.ID)
	if err != nil {
		return nil, err
	}

	missing := []int{}
	for _, chunk := range chunks {
		if !chunk.Delivered {
			missing = append(missing, chunk.Index)
		}
	}

	return &UploadStatus{
		Token:         upload.Token,
		Filename:      upload.Filename,
		Status:        upload.Status,
		TotalSize:     upload.TotalSize,
		UploadedSize:  upload.UploadedSize,
		Progress:      progressPct(upload.UploadedSize, upload.TotalSize),
		MissingChunks: missing,
	}, nil
}

func chunkKey(token uuid.UUID, index int) string {
	return fmt.Sprintf("temp_uploads/%s/chunk_%d", token, index)
}

func chunkPrefix(token uuid.UUID) string {
	return fmt.Sprintf("temp_uploads/%s/", token)
}

func finalKey(token uuid.UUID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", token, filename)
}

func progressPct(uploaded, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(uploaded)/float64(total)*100*100) / 100
}

func mergeMetadata(existing datatypes.JSON, extra map[string]interface{}) (datatypes.JSON, error) {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, fmt.Errorf("decode upload metadata: %w", err)
		}
	}
	for k, v := range extra {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// digestReader hashes everything read through it, so assembly computes the
// whole-file checksum in the same pass that writes the artifact.
type digestReader struct {
	r io.Reader
	h hash.Hash
}

func newDigestReader(r io.Reader) *digestReader {
	h := sha256.New()
	return &digestReader{r: io.TeeReader(r, h), h: h}
}

func (d *digestReader) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *digestReader) SumHex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// sessionLocks keys a mutex by session token. Entries are reference counted
// and dropped once the last holder releases.
type sessionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) acquire(token uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[token]
	if !ok {
		entry = &sessionLock{}
		l.entries[token] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, token)
		}
		l.mu.Unlock()
	}
}

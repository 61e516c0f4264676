package services

import (
	"errors"
	"fmt"
)

// Error taxonomy for the upload engine. Chunk-level integrity failures are
// retryable; a whole-file integrity failure is terminal for the session.
var (
	ErrNotFound        = errors.New("upload not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrIntegrity       = errors.New("checksum mismatch")
)

// MissingChunkError means a chunk marked delivered has no payload on storage.
// Assembly aborts without touching session status so it can be retried once
// storage is repaired.
type MissingChunkError struct {
	Index int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("chunk payload missing from storage: %d", e.Index)
}

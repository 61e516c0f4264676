package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bytecart/catalog-backend/internal/http/response"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
	"github.com/bytecart/catalog-backend/internal/services"
)

type UploadHandler struct {
	log    *logger.Logger
	engine services.ChunkedUploadService
}

func NewUploadHandler(log *logger.Logger, engine services.ChunkedUploadService) *UploadHandler {
	return &UploadHandler{
		log:    log.With("handler", "UploadHandler"),
		engine: engine,
	}
}

type initializeRequest struct {
	Filename  string                 `json:"filename" binding:"required"`
	TotalSize int64                  `json:"total_size" binding:"required"`
	MimeType  string                 `json:"mime_type"`
	Checksum  string                 `json:"checksum" binding:"required"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (h *UploadHandler) Initialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	upload, err := h.engine.Initialize(c.Request.Context(), services.InitializeInput{
		Filename:  req.Filename,
		TotalSize: req.TotalSize,
		MimeType:  req.MimeType,
		Checksum:  req.Checksum,
		Metadata:  req.Metadata,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		h.log.Error("Initialize failed", "filename", req.Filename, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "initialize_failed", err)
		return
	}

	totalChunks := int((upload.TotalSize + services.ChunkSize - 1) / services.ChunkSize)
	response.RespondCreated(c, gin.H{
		"upload_token": upload.Token,
		"chunk_size":   services.ChunkSize,
		"total_chunks": totalChunks,
		"status":       upload.Status,
	})
}

type chunkRequest struct {
	ChunkIndex *int   `json:"chunk_index" binding:"required"`
	ChunkData  string `json:"chunk_data" binding:"required"`
	Checksum   string `json:"checksum" binding:"required"`
}

func (h *UploadHandler) ReceiveChunk(c *gin.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_token", err)
		return
	}

	var req chunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ChunkData)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_chunk_data", err)
		return
	}
	receipt, err := h.engine.ReceiveChunk(c.Request.Context(), token, *req.ChunkIndex, data, req.Checksum)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			response.RespondError(c, http.StatusNotFound, "upload_not_found", err)
		case errors.Is(err, services.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "invalid_chunk", err)
		case errors.Is(err, services.ErrIntegrity):
			response.RespondError(c, http.StatusBadRequest, "checksum_mismatch", err)
		default:
			h.log.Error("Chunk delivery failed", "token", token, "chunk_index", *req.ChunkIndex, "error", err)
			response.RespondError(c, http.StatusInternalServerError, "chunk_failed", err)
		}
		return
	}
	response.RespondOK(c, receipt)
}

func (h *UploadHandler) Status(c *gin.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_token", err)
		return
	}

	status, err := h.engine.GetStatus(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "upload_not_found", err)
			return
		}
		h.log.Error("Status lookup failed", "token", token, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}
	response.RespondOK(c, status)
}

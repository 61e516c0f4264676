package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bytecart/catalog-backend/internal/http/response"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
	"github.com/bytecart/catalog-backend/internal/realtime"
	"github.com/bytecart/catalog-backend/internal/services"
)

type ImportHandler struct {
	log      *logger.Logger
	importer services.ProductImportService
	hub      *realtime.Hub
}

func NewImportHandler(log *logger.Logger, importer services.ProductImportService, hub *realtime.Hub) *ImportHandler {
	return &ImportHandler{
		log:      log.With("handler", "ImportHandler"),
		importer: importer,
		hub:      hub,
	}
}

// Import runs a CSV import synchronously and returns the run stats. The run
// id is also set on the X-Import-Run-Id header so a client can follow the
// SSE stream while the request is in flight.
func (h *ImportHandler) Import(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".csv") {
		response.RespondError(c, http.StatusBadRequest, "not_a_csv", fmt.Errorf("expected .csv, got %s", fh.Filename))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	src, err := services.NewCSVRowSource(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_csv", err)
		return
	}

	runID := uuid.NewString()
	c.Header("X-Import-Run-Id", runID)

	stats, err := h.importer.Run(c.Request.Context(), src, services.RunOptions{
		RunID:    runID,
		ImageDir: c.PostForm("image_dir"),
	})
	if err != nil {
		h.log.Error("Import run failed", "run_id", runID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "import_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"run_id": runID,
		"stats":  stats,
	})
}

type attachImageRequest struct {
	UploadToken string `json:"upload_token" binding:"required"`
}

// AttachImage links a previously completed upload to an existing product.
func (h *ImportHandler) AttachImage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req attachImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	token, err := uuid.Parse(req.UploadToken)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_token", err)
		return
	}

	product, images, err := h.importer.AttachImage(c.Request.Context(), id, token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			response.RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, services.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "upload_not_attachable", err)
		default:
			h.log.Error("Attach image failed", "product_id", id, "token", token, "error", err)
			response.RespondError(c, http.StatusInternalServerError, "attach_failed", err)
		}
		return
	}
	response.RespondOK(c, gin.H{
		"product": product,
		"images":  images,
	})
}

// Stream serves import-progress events over SSE until the client disconnects.
func (h *ImportHandler) Stream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("import_progress", ev)
			return true
		}
	})
}

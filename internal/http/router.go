package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/bytecart/catalog-backend/internal/http/handlers"
	httpMW "github.com/bytecart/catalog-backend/internal/http/middleware"
)

type RouterConfig struct {
	UploadHandler  *httpH.UploadHandler
	ProductHandler *httpH.ProductHandler
	ImportHandler  *httpH.ImportHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Chunked uploads
		if cfg.UploadHandler != nil {
			api.POST("/uploads/initialize", cfg.UploadHandler.Initialize)
			api.POST("/uploads/:token/chunk", cfg.UploadHandler.ReceiveChunk)
			api.GET("/uploads/:token/status", cfg.UploadHandler.Status)
		}

		// Products
		if cfg.ProductHandler != nil {
			api.GET("/products", cfg.ProductHandler.List)
			api.GET("/products/:id", cfg.ProductHandler.Get)
		}

		// Import
		if cfg.ImportHandler != nil {
			api.POST("/products/import", cfg.ImportHandler.Import)
			api.POST("/products/:id/attach-image", cfg.ImportHandler.AttachImage)
			api.GET("/imports/stream", cfg.ImportHandler.Stream)
		}
	}

	return r
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/bytecart/catalog-backend/internal/clients/redis"
	"github.com/bytecart/catalog-backend/internal/data/db"
	"github.com/bytecart/catalog-backend/internal/data/repos"
	httpx "github.com/bytecart/catalog-backend/internal/http"
	"github.com/bytecart/catalog-backend/internal/http/handlers"
	"github.com/bytecart/catalog-backend/internal/platform/blob"
	"github.com/bytecart/catalog-backend/internal/platform/envutil"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
	"github.com/bytecart/catalog-backend/internal/realtime"
	"github.com/bytecart/catalog-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Blob store
	log.Info("Setting up blob store from main...")
	var store blob.Store
	if dir := envutil.Str("UPLOAD_LOCAL_DIR", ""); dir != "" {
		store, err = blob.NewFSStore(dir)
	} else {
		store, err = blob.NewGCSStore(log)
	}
	if err != nil {
		log.Fatal("Could not init blob store", "error", err)
	}

	// Repos
	log.Info("Setting up repos from main...")
	uploadRepo := repos.NewUploadRepo(thePG, log)
	uploadChunkRepo := repos.NewUploadChunkRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	productImageRepo := repos.NewProductImageRepo(thePG, log)

	// Realtime
	hub := realtime.NewHub(log)
	var notifier services.ProgressNotifier
	if envutil.Str("REDIS_ADDR", "") != "" {
		bus, err := redis.NewProgressBus(log)
		if err != nil {
			log.Warn("Could not init redis progress bus", "error", err)
		} else {
			defer bus.Close()
			if err := bus.StartForwarder(context.Background(), hub.Publish); err != nil {
				log.Warn("Could not start progress forwarder", "error", err)
			}
			notifier = bus
		}
	}
	if notifier == nil {
		notifier = localNotifier{hub: hub}
	}

	// Services
	log.Info("Setting up services from main...")
	engine := services.NewChunkedUploadService(thePG, log, store, uploadRepo, uploadChunkRepo)
	variants := services.NewVariantService(thePG, log, store, productImageRepo)
	importer := services.NewProductImportService(
		thePG, log,
		productRepo, productImageRepo, uploadRepo,
		engine, variants, notifier,
	)

	// Handlers
	log.Info("Setting up handlers from main...")
	uploadHandler := handlers.NewUploadHandler(log, engine)
	productHandler := handlers.NewProductHandler(log, productRepo, productImageRepo)
	importHandler := handlers.NewImportHandler(log, importer, hub)
	healthHandler := handlers.NewHealthHandler()

	// Router
	server := httpx.NewServer(httpx.RouterConfig{
		UploadHandler:  uploadHandler,
		ProductHandler: productHandler,
		ImportHandler:  importHandler,
		HealthHandler:  healthHandler,
	})

	port := envutil.Str("PORT", "8080")
	log.Info("Server listening", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}

// localNotifier feeds progress events straight into the in-process hub when
// no redis bus is configured.
type localNotifier struct {
	hub *realtime.Hub
}

func (n localNotifier) PublishImportProgress(_ context.Context, ev realtime.ImportProgress) error {
	n.hub.Publish(ev)
	return nil
}

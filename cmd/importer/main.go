package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/bytecart/catalog-backend/internal/clients/redis"
	"github.com/bytecart/catalog-backend/internal/data/db"
	"github.com/bytecart/catalog-backend/internal/data/repos"
	"github.com/bytecart/catalog-backend/internal/platform/blob"
	"github.com/bytecart/catalog-backend/internal/platform/envutil"
	"github.com/bytecart/catalog-backend/internal/platform/logger"
	"github.com/bytecart/catalog-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	csvPath := flag.String("csv", "", "path to the product CSV file")
	imageDir := flag.String("images", "", "directory holding the image files the CSV references")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -csv products.csv [-images ./images]")
		os.Exit(2)
	}

	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	var store blob.Store
	if dir := envutil.Str("UPLOAD_LOCAL_DIR", ""); dir != "" {
		store, err = blob.NewFSStore(dir)
	} else {
		store, err = blob.NewGCSStore(log)
	}
	if err != nil {
		log.Fatal("Could not init blob store", "error", err)
	}

	uploadRepo := repos.NewUploadRepo(thePG, log)
	uploadChunkRepo := repos.NewUploadChunkRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	productImageRepo := repos.NewProductImageRepo(thePG, log)

	var notifier services.ProgressNotifier
	if envutil.Str("REDIS_ADDR", "") != "" {
		bus, err := redis.NewProgressBus(log)
		if err != nil {
			log.Warn("Could not init redis progress bus", "error", err)
		} else {
			defer bus.Close()
			notifier = bus
		}
	}

	engine := services.NewChunkedUploadService(thePG, log, store, uploadRepo, uploadChunkRepo)
	variants := services.NewVariantService(thePG, log, store, productImageRepo)
	importer := services.NewProductImportService(
		thePG, log,
		productRepo, productImageRepo, uploadRepo,
		engine, variants, notifier,
	)

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatal("Could not open CSV", "path", *csvPath, "error", err)
	}
	defer f.Close()

	src, err := services.NewCSVRowSource(f)
	if err != nil {
		log.Fatal("Could not read CSV header", "path", *csvPath, "error", err)
	}

	stats, err := importer.Run(context.Background(), src, services.RunOptions{ImageDir: *imageDir})
	if err != nil {
		log.Fatal("Import run failed", "error", err)
	}

	fmt.Printf("processed:      %d\n", stats.Total)
	fmt.Printf("imported:       %d\n", stats.Imported)
	fmt.Printf("updated:        %d\n", stats.Updated)
	fmt.Printf("invalid:        %d\n", stats.Invalid)
	fmt.Printf("duplicates:     %d\n", stats.Duplicates)
	fmt.Printf("image failures: %d\n", stats.ImageFailures)
}

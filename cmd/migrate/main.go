package main

import (
	"context"
	"fmt"
	"time"

	"barberline/internal/availability/repository"
	"barberline/internal/catalog"
	mongoMigration "barberline/internal/migrations/mongo"
	"barberline/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Mongo migration job")
	defer cfg.GracefulShutdown()

	migrateMongo(ctx, cfg)
	syncCatalog(ctx, cfg)
	fmt.Println("Migration completed successfully.")
}

func migrateMongo(ctx context.Context, cfg *config.Config) {
	if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
}

// syncCatalog mirrors the shop catalog file into Mongo so reporting queries
// can join appointments to service and barber names.
func syncCatalog(ctx context.Context, cfg *config.Config) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalog", "path", cfg.CatalogPath, "error", err)
	}
	repo := repository.NewMongoCatalogRepository(cfg)
	if err := repo.SyncServices(ctx, cat.Services); err != nil {
		cfg.Log.Fatal("Failed to sync services", "error", err)
	}
	if err := repo.SyncBarbers(ctx, cat.Barbers); err != nil {
		cfg.Log.Fatal("Failed to sync barbers", "error", err)
	}
	cfg.Log.Info("Catalog synced", "services", len(cat.Services), "barbers", len(cat.Barbers))
}

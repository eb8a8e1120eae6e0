package repository

import (
	"context"
	"fmt"
	"sync"

	"barberline/pkg/config"
	"barberline/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CatalogRepository mirrors the shop catalog into the store so barbers and
// services can be listed next to the appointments that reference them.
type CatalogRepository interface {
	SyncServices(ctx context.Context, services []model.Service) error
	SyncBarbers(ctx context.Context, barbers []model.Barber) error
	ListServices(ctx context.Context) ([]model.Service, error)
	ListBarbers(ctx context.Context) ([]model.Barber, error)
}

type mongoCatalogRepository struct {
	cfg      *config.Config
	services *mongo.Collection
	barbers  *mongo.Collection
}

func NewMongoCatalogRepository(cfg *config.Config) CatalogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCatalogRepository{
		cfg:      cfg,
		services: db.Collection(ServiceCollectionName),
		barbers:  db.Collection(BarberCollectionName),
	}
}

func (r *mongoCatalogRepository) SyncServices(ctx context.Context, services []model.Service) error {
	models := make([]mongo.WriteModel, 0, len(services))
	for _, s := range services {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": s.ID}).
			SetReplacement(s).
			SetUpsert(true))
	}
	return r.sync(ctx, r.services, models, "services")
}

func (r *mongoCatalogRepository) SyncBarbers(ctx context.Context, barbers []model.Barber) error {
	models := make([]mongo.WriteModel, 0, len(barbers))
	for _, b := range barbers {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": b.ID}).
			SetReplacement(b).
			SetUpsert(true))
	}
	return r.sync(ctx, r.barbers, models, "barbers")
}

func (r *mongoCatalogRepository) sync(ctx context.Context, coll *mongo.Collection, models []mongo.WriteModel, what string) error {
	if len(models) == 0 {
		return nil
	}
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to sync %s: %w", what, err)
	}
	return nil
}

func (r *mongoCatalogRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	var services []model.Service
	if err := r.list(ctx, r.services, &services); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *mongoCatalogRepository) ListBarbers(ctx context.Context) ([]model.Barber, error) {
	var barbers []model.Barber
	if err := r.list(ctx, r.barbers, &barbers); err != nil {
		return nil, fmt.Errorf("failed to list barbers: %w", err)
	}
	return barbers, nil
}

func (r *mongoCatalogRepository) list(ctx context.Context, coll *mongo.Collection, out any) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

type memoryCatalogRepository struct {
	mu       sync.RWMutex
	services []model.Service
	barbers  []model.Barber
}

func NewMemoryCatalogRepository() CatalogRepository {
	return &memoryCatalogRepository{}
}

func (r *memoryCatalogRepository) SyncServices(_ context.Context, services []model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = append([]model.Service(nil), services...)
	return nil
}

func (r *memoryCatalogRepository) SyncBarbers(_ context.Context, barbers []model.Barber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.barbers = append([]model.Barber(nil), barbers...)
	return nil
}

func (r *memoryCatalogRepository) ListServices(context.Context) ([]model.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Service(nil), r.services...), nil
}

func (r *memoryCatalogRepository) ListBarbers(context.Context) ([]model.Barber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Barber(nil), r.barbers...), nil
}

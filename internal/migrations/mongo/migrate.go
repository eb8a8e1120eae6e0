// Package mongo creates the agent's collections with their JSON schema
// validators and the indexes its queries rely on. Running it twice is safe.
package mongo

import (
	"context"
	"fmt"

	"barberline/internal/availability/repository"
	"barberline/internal/migrations/mongo/validators"
	"barberline/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	SlotIndexes = []mongo.IndexModel{
		// candidate search: open blocks of qualified barbers in a window
		{Keys: bson.D{
			{Key: "barber_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "state", Value: 1},
		}},
		// TTL sweep
		{Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "hold_expires_at", Value: 1},
		}},
		{Keys: bson.D{{Key: "appointment_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	AppointmentIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "phone", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "call_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	BarberIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "service_ids", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() map[string]collectionDef {
	return map[string]collectionDef{
		repository.SlotCollectionName: {
			Indexes:   SlotIndexes,
			Validator: validators.SlotValidator,
		},
		repository.AppointmentCollectionName: {
			Indexes:   AppointmentIndexes,
			Validator: validators.AppointmentValidator,
		},
		repository.BarberCollectionName: {
			Indexes:   BarberIndexes,
			Validator: validators.BarberValidator,
		},
		repository.ServiceCollectionName: {
			Validator: validators.ServiceValidator,
		},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for name, def := range collections() {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

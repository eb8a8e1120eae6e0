package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "barberline/internal/availability/errors"
	"barberline/pkg/config"
	mongotx "barberline/pkg/db/mongo"
	"barberline/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	cfg          *config.Config
	db           *mongo.Database
	slots        *mongo.Collection
	appointments *mongo.Collection
	txManager    mongotx.TransactionManager
}

func NewMongoStore(cfg *config.Config) Store {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStore{
		cfg:          cfg,
		db:           db,
		slots:        db.Collection(SlotCollectionName),
		appointments: db.Collection(AppointmentCollectionName),
		txManager:    mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// Inside a SessionContext the original context is returned with a no-op cancel.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoStore) UpsertFree(ctx context.Context, slots []model.AvailabilitySlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(slots))
	for _, slot := range slots {
		slot.State = model.SlotFree
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": slot.ID}).
			SetUpdate(bson.M{"$setOnInsert": slot}).
			SetUpsert(true))
	}

	result, err := r.slots.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert slots: %w", err)
	}
	return int(result.UpsertedCount), nil
}

func (r *mongoStore) FindOpen(ctx context.Context, barberIDs []string, from, to, now time.Time) ([]model.AvailabilitySlot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"barber_id":  bson.M{"$in": barberIDs},
		"start_time": bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
		"$or": bson.A{
			bson.M{"state": model.SlotFree},
			bson.M{"state": model.SlotHeld, "hold_expires_at": bson.M{"$lte": now.UTC()}},
		},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "barber_id", Value: 1},
		{Key: "start_time", Value: 1},
	})

	cursor, err := r.slots.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find open slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoStore) FindByIDs(ctx context.Context, ids []string) ([]model.AvailabilitySlot, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.slots.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoStore) snapshot(ctx context.Context, ids []string) (map[string]model.AvailabilitySlot, error) {
	slots, err := r.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[string]model.AvailabilitySlot, len(slots))
	for _, slot := range slots {
		found[slot.ID] = slot
	}
	return found, nil
}

func (r *mongoStore) Hold(ctx context.Context, blockIDs []string, sessionID string, now, expiresAt time.Time) error {
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := r.snapshot(sessCtx, blockIDs)
		if err != nil {
			return err
		}
		if err := checkHoldable(blockIDs, found, now); err != nil {
			return err
		}

		update := bson.M{"$set": bson.M{
			"state":           model.SlotHeld,
			"held_by":         sessionID,
			"hold_expires_at": expiresAt.UTC(),
		}}
		result, err := r.slots.UpdateMany(sessCtx, bson.M{"_id": bson.M{"$in": blockIDs}}, update)
		if err != nil {
			return fmt.Errorf("failed to hold slots: %w", err)
		}
		if result.MatchedCount != int64(len(blockIDs)) {
			return availabilityerrors.ErrSlotNotFound
		}
		return nil
	})
}

func (r *mongoStore) Book(ctx context.Context, blockIDs []string, sessionID string, now time.Time, appt *model.Appointment) error {
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		found, err := r.snapshot(sessCtx, blockIDs)
		if err != nil {
			return err
		}
		if err := checkBookable(blockIDs, found, sessionID, now); err != nil {
			return err
		}

		overlap := bson.M{
			"barber_id":  appt.BarberID,
			"status":     model.AppointmentBooked,
			"start_time": bson.M{"$lt": appt.EndTime.UTC()},
			"end_time":   bson.M{"$gt": appt.StartTime.UTC()},
		}
		n, err := r.appointments.CountDocuments(sessCtx, overlap)
		if err != nil {
			return fmt.Errorf("failed to check overlapping appointments: %w", err)
		}
		if n > 0 {
			return availabilityerrors.ErrOverlappingAppointment
		}

		if _, err := r.appointments.InsertOne(sessCtx, appt); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}

		update := bson.M{
			"$set":   bson.M{"state": model.SlotBooked, "appointment_id": appt.ID},
			"$unset": bson.M{"held_by": "", "hold_expires_at": ""},
		}
		filter := bson.M{"_id": bson.M{"$in": blockIDs}, "state": model.SlotHeld, "held_by": sessionID}
		result, err := r.slots.UpdateMany(sessCtx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to book slots: %w", err)
		}
		if result.ModifiedCount != int64(len(blockIDs)) {
			return availabilityerrors.ErrSlotUnavailable
		}
		return nil
	})
}

func (r *mongoStore) Release(ctx context.Context, blockIDs []string, sessionID string) (int, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": bson.M{"$in": blockIDs}, "state": model.SlotHeld, "held_by": sessionID}
	result, err := r.slots.UpdateMany(ctx, filter, freeUpdate())
	if err != nil {
		return 0, fmt.Errorf("failed to release slots: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *mongoStore) ReleaseExpired(ctx context.Context, now time.Time) ([]string, error) {
	var released []string
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{"state": model.SlotHeld, "hold_expires_at": bson.M{"$lte": now.UTC()}}
		cursor, err := r.slots.Find(sessCtx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return fmt.Errorf("failed to find expired holds: %w", err)
		}
		var docs []struct {
			ID string `bson:"_id"`
		}
		if err := cursor.All(sessCtx, &docs); err != nil {
			return fmt.Errorf("failed to decode expired holds: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}

		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		// re-check expiry so a hold renewed after the find is not freed
		filter["_id"] = bson.M{"$in": ids}
		if _, err := r.slots.UpdateMany(sessCtx, filter, freeUpdate()); err != nil {
			return fmt.Errorf("failed to release expired holds: %w", err)
		}
		released = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func freeUpdate() bson.M {
	return bson.M{
		"$set":   bson.M{"state": model.SlotFree},
		"$unset": bson.M{"held_by": "", "hold_expires_at": "", "appointment_id": ""},
	}
}

func (r *mongoStore) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var appt model.Appointment
	err := r.appointments.FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appt, nil
}

func (r *mongoStore) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.appointments.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appts []*model.Appointment
	if err = cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appts, nil
}

func (r *mongoStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.appointments.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *mongoStore) Cancel(ctx context.Context, id string, at time.Time) (*model.Appointment, error) {
	var cancelled *model.Appointment
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		appt, err := r.FindByID(sessCtx, id)
		if err != nil {
			return err
		}
		if appt.Status == model.AppointmentCancelled {
			return availabilityerrors.ErrAlreadyCancelled
		}

		update := bson.M{"$set": bson.M{"status": model.AppointmentCancelled, "cancelled_at": at.UTC()}}
		if _, err := r.appointments.UpdateOne(sessCtx, bson.M{"_id": id}, update); err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}
		if _, err := r.slots.UpdateMany(sessCtx, bson.M{"appointment_id": id, "state": model.SlotBooked}, freeUpdate()); err != nil {
			return fmt.Errorf("failed to free appointment slots: %w", err)
		}

		cancelledAt := at.UTC()
		appt.Status = model.AppointmentCancelled
		appt.CancelledAt = &cancelledAt
		cancelled = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

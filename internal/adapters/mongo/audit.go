package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/bus-booking-gateway/internal/events"
	"github.com/robertarktes/bus-booking-gateway/internal/observability"
)

// AuditLogger appends workflow events to the audit_logs collection. The event
// id is the document id, so a redelivered event is stored once.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID         string    `bson:"_id"`
	Action     string    `bson:"action"`
	UserID     int64     `bson:"user_id"`
	TripID     int64     `bson:"trip_id,omitempty"`
	BookingID  string    `bson:"booking_id,omitempty"`
	Seats      []string  `bson:"seats,omitempty"`
	Amount     string    `bson:"amount"`
	Reason     string    `bson:"reason,omitempty"`
	Timestamp  time.Time `bson:"timestamp"`
	RecordedAt time.Time `bson:"recorded_at"`
}

func toAuditLog(e events.Event) AuditLog {
	return AuditLog{
		ID:         e.ID.String(),
		Action:     string(e.Type),
		UserID:     e.UserID,
		TripID:     e.TripID,
		BookingID:  e.BookingID,
		Seats:      e.Seats,
		Amount:     e.Amount.StringFixed(2),
		Reason:     e.Reason,
		Timestamp:  e.OccurredAt,
		RecordedAt: time.Now().UTC(),
	}
}

// EnsureIndexes creates the lookups used by support staff.
func (a *AuditLogger) EnsureIndexes(ctx context.Context) error {
	_, err := a.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "booking_id", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return err
}

func (a *AuditLogger) Record(ctx context.Context, e events.Event) error {
	_, err := a.coll.InsertOne(ctx, toAuditLog(e))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		a.logger.WithField("event_id", e.ID).WithError(err).Error("failed to insert audit log")
		return errors.Wrap(err, "insert audit log")
	}
	return nil
}

// Publish lets the audit log act as an events.Sink.
func (a *AuditLogger) Publish(ctx context.Context, e events.Event) error {
	return a.Record(ctx, e)
}

func (a *AuditLogger) ForBooking(ctx context.Context, bookingID string) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"booking_id": bookingID}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find audit logs")
	}
	var out []AuditLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode audit logs")
	}
	return out, nil
}

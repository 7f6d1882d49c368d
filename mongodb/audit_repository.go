package mongodb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/skygenesisenterprise/aether-identity/domain"
)

// AuditRepository implements domain.AuditRepository on MongoDB.
type AuditRepository struct {
	events *mongo.Collection
}

// NewAuditRepository creates the repository and ensures its indexes.
func NewAuditRepository(ctx context.Context, db *mongo.Database) (*AuditRepository, error) {
	repo := &AuditRepository{events: db.Collection(AuditLogsCollection)}
	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
	if _, err := repo.events.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Failed to create audit log indexes")
	}
	return repo, nil
}

func (r *AuditRepository) StoreAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.events.InsertOne(ctx, event)
	return err
}

func (r *AuditRepository) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.events.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ domain.AuditRepository = (*AuditRepository)(nil)

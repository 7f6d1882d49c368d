package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

// MfaSessionRepository implements domain.MfaSessionRepository on MongoDB.
// The unique user_id index enforces the one-pending-challenge-per-user
// rule at the storage layer.
type MfaSessionRepository struct {
	sessions *mongo.Collection
}

// NewMfaSessionRepository creates the repository and ensures its indexes.
func NewMfaSessionRepository(ctx context.Context, db *mongo.Database) (*MfaSessionRepository, error) {
	repo := &MfaSessionRepository{sessions: db.Collection(MfaSessionsCollection)}
	if _, err := repo.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to create mfa session indexes")
	}
	return repo, nil
}

func (r *MfaSessionRepository) GetMfaSession(ctx context.Context, userID string) (*domain.MfaSession, error) {
	var session domain.MfaSession
	err := r.sessions.FindOne(ctx, bson.M{"user_id": userID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *MfaSessionRepository) GetMfaSessionByID(ctx context.Context, id string) (*domain.MfaSession, error) {
	var session domain.MfaSession
	err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpsertMfaSession replaces the user's pending session, resetting the
// attempt counter with it.
func (r *MfaSessionRepository) UpsertMfaSession(ctx context.Context, session *domain.MfaSession) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.sessions.ReplaceOne(ctx, bson.M{"user_id": session.UserID}, session, opts)
	return err
}

func (r *MfaSessionRepository) UpdateMfaSession(ctx context.Context, session *domain.MfaSession) error {
	res, err := r.sessions.ReplaceOne(ctx, bson.M{"_id": session.ID}, session)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrSessionNotFound
	}
	return nil
}

func (r *MfaSessionRepository) DeleteMfaSessions(ctx context.Context, userID string) error {
	_, err := r.sessions.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// DeleteDefunctMfaSessions removes sessions that expired, were verified
// before the retention cutoff, or burned all their attempts.
func (r *MfaSessionRepository) DeleteDefunctMfaSessions(ctx context.Context, now time.Time, verifiedBefore time.Time) (int64, error) {
	res, err := r.sessions.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"code_expires_at": bson.M{"$lt": now}},
			{"is_verified": true, "verified_at": bson.M{"$lt": verifiedBefore}},
			{"$expr": bson.M{"$gte": bson.A{"$attempts", "$max_attempts"}}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ domain.MfaSessionRepository = (*MfaSessionRepository)(nil)

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

// AuthSessionRepository implements domain.AuthSessionRepository on MongoDB.
type AuthSessionRepository struct {
	sessions *mongo.Collection
}

// NewAuthSessionRepository creates the repository and ensures its indexes.
func NewAuthSessionRepository(ctx context.Context, db *mongo.Database) (*AuthSessionRepository, error) {
	repo := &AuthSessionRepository{sessions: db.Collection(AuthSessionsCollection)}
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "client_id", Value: 1}},
		},
	}
	if _, err := repo.sessions.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Failed to create auth session indexes")
	}
	return repo, nil
}

func (r *AuthSessionRepository) CreateAuthSession(ctx context.Context, session *domain.AuthorizationSession) error {
	_, err := r.sessions.InsertOne(ctx, session)
	return err
}

func (r *AuthSessionRepository) GetAuthSessionBySessionID(ctx context.Context, sessionID string) (*domain.AuthorizationSession, error) {
	var session domain.AuthorizationSession
	err := r.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *AuthSessionRepository) UpdateAuthSession(ctx context.Context, session *domain.AuthorizationSession) error {
	res, err := r.sessions.ReplaceOne(ctx, bson.M{"session_id": session.SessionID}, session)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrSessionNotFound
	}
	return nil
}

// CompleteAuthSession flips is_completed with a filter requiring it to
// still be false. Of two concurrent exchanges exactly one sees a modified
// document; the other gets false and must reject the code.
func (r *AuthSessionRepository) CompleteAuthSession(ctx context.Context, sessionID string, completedAt time.Time) (bool, error) {
	res, err := r.sessions.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "is_completed": false},
		bson.M{"$set": bson.M{"is_completed": true, "completed_at": completedAt}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// DeleteDefunctAuthSessions removes sessions whose code expired or that
// completed before the retention cutoff.
func (r *AuthSessionRepository) DeleteDefunctAuthSessions(ctx context.Context, now time.Time, completedBefore time.Time) (int64, error) {
	res, err := r.sessions.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"auth_code_expires_at": bson.M{"$lt": now}, "is_completed": false},
			{"is_completed": true, "completed_at": bson.M{"$lt": completedBefore}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ domain.AuthSessionRepository = (*AuthSessionRepository)(nil)

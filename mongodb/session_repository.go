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

// SessionRepository implements domain.SessionRepository on MongoDB.
type SessionRepository struct {
	sessions *mongo.Collection
}

// NewSessionRepository creates the repository and ensures its indexes.
func NewSessionRepository(ctx context.Context, db *mongo.Database) (*SessionRepository, error) {
	repo := &SessionRepository{sessions: db.Collection(SessionsCollection)}
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}
	if _, err := repo.sessions.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Failed to create session indexes")
	}
	return repo, nil
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.sessions.InsertOne(ctx, session)
	return err
}

func (r *SessionRepository) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	var session domain.Session
	err := r.sessions.FindOne(ctx, bson.M{"session_token": token}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	var session domain.Session
	err := r.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) TouchSession(ctx context.Context, id string, seenAt time.Time) error {
	_, err := r.sessions.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_seen_at": seenAt}},
	)
	return err
}

func (r *SessionRepository) DeactivateSession(ctx context.Context, id string) error {
	res, err := r.sessions.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) DeactivateUserSessions(ctx context.Context, userID string) (int64, error) {
	res, err := r.sessions.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteDefunctSessions removes sessions that are expired or deactivated.
func (r *SessionRepository) DeleteDefunctSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.sessions.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"is_active": false},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ domain.SessionRepository = (*SessionRepository)(nil)

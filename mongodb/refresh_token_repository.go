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

// RefreshTokenRepository implements domain.RefreshTokenRepository on
// MongoDB.
type RefreshTokenRepository struct {
	tokens *mongo.Collection
}

// NewRefreshTokenRepository creates the repository and ensures its indexes.
func NewRefreshTokenRepository(ctx context.Context, db *mongo.Database) (*RefreshTokenRepository, error) {
	repo := &RefreshTokenRepository{tokens: db.Collection(RefreshTokensCollection)}
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}
	if _, err := repo.tokens.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Failed to create refresh token indexes")
	}
	return repo, nil
}

func (r *RefreshTokenRepository) StoreRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	_, err := r.tokens.InsertOne(ctx, token)
	return err
}

func (r *RefreshTokenRepository) GetRefreshTokenByTokenID(ctx context.Context, tokenID string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	err := r.tokens.FindOne(ctx, bson.M{"token_id": tokenID}).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeRefreshToken marks the record revoked, filtered on it not being
// revoked yet. A false return means someone else got there first.
func (r *RefreshTokenRepository) RevokeRefreshToken(ctx context.Context, tokenID string, revokedAt time.Time) (bool, error) {
	res, err := r.tokens.UpdateOne(ctx,
		bson.M{"token_id": tokenID, "is_revoked": false},
		bson.M{"$set": bson.M{"is_revoked": true, "revoked_at": revokedAt}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *RefreshTokenRepository) RevokeUserRefreshTokens(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	res, err := r.tokens.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_revoked": false},
		bson.M{"$set": bson.M{"is_revoked": true, "revoked_at": revokedAt}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteDefunctRefreshTokens removes expired tokens and tokens revoked
// before the retention cutoff.
func (r *RefreshTokenRepository) DeleteDefunctRefreshTokens(ctx context.Context, now time.Time, revokedBefore time.Time) (int64, error) {
	res, err := r.tokens.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"expires_at": bson.M{"$lt": now}},
			{"is_revoked": true, "revoked_at": bson.M{"$lt": revokedBefore}},
		},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *RefreshTokenRepository) CountActiveRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.tokens.CountDocuments(ctx, bson.M{
		"is_revoked": false,
		"expires_at": bson.M{"$gt": now},
	})
}

var _ domain.RefreshTokenRepository = (*RefreshTokenRepository)(nil)

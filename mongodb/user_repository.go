package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skygenesisenterprise/aether-identity/domain"
	serrors "github.com/skygenesisenterprise/aether-identity/errors"
)

// UserRepository implements domain.UserRepository on MongoDB.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{users: db.Collection(UsersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		// Compatible indexes may already exist; not fatal.
		log.Warn().Err(err).Msg("Failed to create user indexes")
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetCollation(&options.Collation{Locale: "en", Strength: 2}),
	})
	return err
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return errors.New("email already registered")
	}
	return err
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrUserNotFound
	}
	return nil
}

// RecordFailedLogin increments the failure counter and applies the lockout
// timestamp in a single write.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID string, lockUntil *time.Time) error {
	update := bson.M{
		"$inc": bson.M{"failed_login_attempts": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	if lockUntil != nil {
		update["$set"].(bson.M)["locked_until"] = *lockUntil
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrUserNotFound
	}
	return nil
}

// ResetLoginFailures clears the counter and lockout after a success.
func (r *UserRepository) ResetLoginFailures(ctx context.Context, userID string, loginAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"failed_login_attempts": 0,
			"last_login_at":         loginAt,
			"updated_at":            time.Now(),
		},
		"$unset": bson.M{"locked_until": ""},
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrUserNotFound
	}
	return nil
}

// UpdateMfaState persists all MFA fields of the user in one write.
func (r *UserRepository) UpdateMfaState(ctx context.Context, user *domain.User) error {
	update := bson.M{
		"$set": bson.M{
			"mfa_enabled":      user.MfaEnabled,
			"mfa_method":       user.MfaMethod,
			"mfa_secret":       user.MfaSecret,
			"backup_codes":     user.BackupCodes,
			"mfa_pending_at":   user.MfaPendingAt,
			"last_mfa_used_at": user.LastMfaUsedAt,
			"updated_at":       time.Now(),
		},
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrUserNotFound
	}
	return nil
}

// ConsumeBackupCode removes the code with a filtered $pull. The filter
// requires the code to be present, so of two concurrent redemptions only
// the one that modified the document reports success.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, userID, code string) (bool, error) {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID, "backup_codes": code},
		bson.M{
			"$pull": bson.M{"backup_codes": code},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)

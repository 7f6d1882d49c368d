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

// ClientRepository implements domain.ClientRepository on MongoDB.
type ClientRepository struct {
	clients *mongo.Collection
}

// NewClientRepository creates the repository and ensures its indexes.
func NewClientRepository(ctx context.Context, db *mongo.Database) (*ClientRepository, error) {
	repo := &ClientRepository{clients: db.Collection(ClientsCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create client indexes")
	}
	return repo, nil
}

func (r *ClientRepository) createIndexes(ctx context.Context) error {
	_, err := r.clients.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *ClientRepository) GetClientByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&client)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, serrors.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) CreateClient(ctx context.Context, client *domain.Client) error {
	now := time.Now()
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	client.CreatedAt = now
	client.UpdatedAt = now
	_, err := r.clients.InsertOne(ctx, client)
	if mongo.IsDuplicateKeyError(err) {
		return errors.New("client_id already registered")
	}
	return err
}

func (r *ClientRepository) UpdateClient(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now()
	res, err := r.clients.ReplaceOne(ctx, bson.M{"_id": client.ID}, client)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return serrors.ErrClientNotFound
	}
	return nil
}

var _ domain.ClientRepository = (*ClientRepository)(nil)

package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"careportal/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usernameIndex = "uniq_username"
	emailIndex    = "uniq_email"
)

// MongoUserRepository stores accounts in a MongoDB collection with unique
// indexes on username and email.
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a repository over the given collection.
func NewMongoUserRepository(db *mongo.Database, collection string) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection(collection)}
}

// EnsureIndexes creates the unique indexes the repository relies on.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(usernameIndex),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(emailIndex),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) Create(ctx context.Context, account *models.UserAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.Email = models.NormalizeEmail(account.Email)
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateFromMongo(err)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) Update(ctx context.Context, account *models.UserAccount) error {
	account.Email = models.NormalizeEmail(account.Email)
	account.UpdatedAt = time.Now().UTC()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": account.ID}, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateFromMongo(err)
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account with ID %s: %w", account.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.UserAccount, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.UserAccount, error) {
	return r.findOne(ctx, bson.M{"username": username}, username)
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.UserAccount, error) {
	email = models.NormalizeEmail(email)
	return r.findOne(ctx, bson.M{"email": email}, email)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.UserAccount, error) {
	var account models.UserAccount
	err := r.col.FindOne(ctx, filter).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("account %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %q: %w", key, err)
	}
	return &account, nil
}

// duplicateFromMongo maps the index named in a duplicate key error to the
// account field it guards. Only the "index: <name> " part of each write error
// is matched; the rest of the message echoes the rejected value.
func duplicateFromMongo(err error) error {
	var messages []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			messages = append(messages, e.Message)
		}
	}
	if len(messages) == 0 {
		messages = append(messages, err.Error())
	}

	for _, msg := range messages {
		if strings.Contains(msg, "index: "+usernameIndex+" ") {
			return &DuplicateKeyError{Field: FieldUsername}
		}
	}
	return &DuplicateKeyError{Field: FieldEmail}
}

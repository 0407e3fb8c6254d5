package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smallbiznis/adsbridge/internal/domain"
)

// CredentialsCollection is the collection holding credential documents.
const CredentialsCollection = "credentials"

type mongoCredential struct {
	ID           int64      `bson:"_id"`
	UserID       string     `bson:"userId"`
	AccessToken  string     `bson:"accessToken"`
	RefreshToken *string    `bson:"refreshToken"`
	ExpiresAt    *time.Time `bson:"expiresAt"`
	TokenType    string     `bson:"tokenType"`
	AdAccountID  *string    `bson:"adAccountId"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func (d mongoCredential) toDomain() *domain.Credential {
	return &domain.Credential{
		ID:           d.ID,
		UserID:       d.UserID,
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		ExpiresAt:    d.ExpiresAt,
		TokenType:    d.TokenType,
		AdAccountID:  d.AdAccountID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoCredentialRepo implements CredentialRepository on a MongoDB collection.
type MongoCredentialRepo struct {
	coll *mongo.Collection
	node *snowflake.Node
	now  func() time.Time
}

var _ CredentialRepository = (*MongoCredentialRepo)(nil)

func NewMongoCredentialRepo(db *mongo.Database, node *snowflake.Node) *MongoCredentialRepo {
	return &MongoCredentialRepo{
		coll: db.Collection(CredentialsCollection),
		node: node,
		now:  time.Now,
	}
}

// EnsureIndexes creates the unique userId index.
func (r *MongoCredentialRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userId_unique"),
	})
	if err != nil {
		return fmt.Errorf("create credential index: %w", err)
	}
	return nil
}

func (r *MongoCredentialRepo) FindByUser(ctx context.Context, userID string) (*domain.Credential, error) {
	var doc mongoCredential
	err := r.coll.FindOne(ctx, bson.M{"userId": strings.TrimSpace(userID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MongoCredentialRepo) Upsert(ctx context.Context, userID string, fields domain.CredentialFields) (*domain.Credential, error) {
	fields = fields.Normalize()
	key := strings.TrimSpace(userID)
	now := r.now().UTC()

	update := bson.M{
		"$set": bson.M{
			"accessToken":  fields.AccessToken,
			"refreshToken": fields.RefreshToken,
			"expiresAt":    fields.ExpiresAt,
			"tokenType":    fields.TokenType,
			"adAccountId":  fields.AdAccountID,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"_id":       r.node.Generate().Int64(),
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc mongoCredential
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"userId": key}, update, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return doc.toDomain(), nil
}

package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

const CollectionNameCredentials = "credentials"

type MongoOptions struct {
	URI      string
	Username string
	Password string
	DB       string
	Direct   bool
}

type MongoInstance struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongo(ctx context.Context, opt MongoOptions) (*MongoInstance, error) {
	clientOpts := options.Client().
		ApplyURI(opt.URI).
		SetDirect(opt.Direct)

	if opt.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opt.Username,
			Password: opt.Password,
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	coll := client.Database(opt.DB).Collection(CollectionNameCredentials)

	name, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("identity: create email index: %w", err)
	}

	zap.S().Named("identity").Infow("mongo connected",
		"db", opt.DB,
		"index", name,
	)

	return &MongoInstance{
		client: client,
		coll:   coll,
	}, nil
}

func (i *MongoInstance) Register(ctx context.Context, email string, password string) (string, error) {
	email = NormalizeEmail(email)
	if err := validate(email, password); err != nil {
		return "", err
	}

	cred, err := newCredential(uuid.NewString(), email, password, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if _, err := i.coll.InsertOne(ctx, cred); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrEmailTaken
		}

		return "", err
	}

	return cred.ID, nil
}

func (i *MongoInstance) Login(ctx context.Context, email string, password string) (string, error) {
	cred := Credential{}

	err := i.coll.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidCredentials
		}

		return "", err
	}

	if err := cred.Check(password); err != nil {
		return "", err
	}

	return cred.ID, nil
}

func (i *MongoInstance) Ping(ctx context.Context) error {
	return i.client.Ping(ctx, readpref.Primary())
}

func (i *MongoInstance) Close(ctx context.Context) error {
	return i.client.Disconnect(ctx)
}

package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const usersCollection = "users"

type userDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	Profile   `bson:",inline"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d userDocument) user() User {
	return User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		Profile:      d.Profile,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MongoRepository struct {
	client *mongo.Client
	users  *mongo.Collection
}

var _ Repository = (*MongoRepository)(nil)

// ConnectMongo dials uri and returns a repository over database's users
// collection. The caller owns Close.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoRepository, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoRepository{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
	}, nil
}

// EnsureIndexes creates the unique email index and the listing order index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: keyEmail, Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: keyCreatedAt, Value: 1}, {Key: "_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *MongoRepository) Create(ctx context.Context, user User) (User, error) {
	doc := userDocument{
		ID:        bson.NewObjectID(),
		Email:     user.Email,
		Password:  user.PasswordHash,
		Profile:   user.Profile,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		return User{}, translateMongoError(err)
	}
	return doc.user(), nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, bson.D{{Key: keyEmail, Value: email}})
}

func (r *MongoRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrNotFound
	}

	set := setDocument(patch)
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	var doc userDocument
	err = r.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return User{}, translateMongoError(err)
	}
	return doc.user(), nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := r.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}}); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Find(ctx context.Context, q Query) ([]User, error) {
	filter, err := searchFilter(q)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: keyCreatedAt, Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(q.Page.Skip)
	if q.Page.Limit > 0 {
		opts.SetLimit(q.Page.Limit)
	}

	cursor, err := r.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]User, 0)
	for cursor.Next(ctx) {
		var doc userDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, doc.user())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D) (User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return User{}, translateMongoError(err)
	}
	return doc.user(), nil
}

// searchFilter ORs a case-insensitive literal match of q.Value over q.Fields.
func searchFilter(q Query) (bson.D, error) {
	if len(q.Fields) == 0 {
		return bson.D{}, nil
	}

	pattern := bson.Regex{Pattern: regexp.QuoteMeta(q.Value), Options: "i"}
	or := make(bson.A, 0, len(q.Fields))
	for _, key := range q.Fields {
		if !Searchable(key) {
			return nil, ErrInvalidSearchKey
		}
		or = append(or, bson.D{{Key: key, Value: pattern}})
	}
	return bson.D{{Key: "$or", Value: or}}, nil
}

func setDocument(patch Patch) bson.D {
	set := bson.D{}
	for _, f := range patch {
		if patchable(f.Key) {
			set = append(set, bson.E{Key: f.Key, Value: f.Value})
		}
	}
	return set
}

func translateMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrEmailTaken
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

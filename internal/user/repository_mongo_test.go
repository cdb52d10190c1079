package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func TestSearchFilter(t *testing.T) {
	filter, err := searchFilter(Query{})
	require.NoError(t, err)
	assert.Empty(t, filter)

	filter, err = searchFilter(Query{Fields: []string{"name", "city"}, Value: "a.b*"})
	require.NoError(t, err)

	pattern := bson.Regex{Pattern: `a\.b\*`, Options: "i"}
	want := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: pattern}},
		bson.D{{Key: "city", Value: pattern}},
	}}}
	assert.Equal(t, want, filter)

	_, err = searchFilter(Query{Fields: []string{"password"}, Value: "x"})
	assert.ErrorIs(t, err, ErrInvalidSearchKey)
}

func TestSetDocument(t *testing.T) {
	now := time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC)
	set := setDocument(Patch{
		{Key: keyEmail, Value: "ada@example.com"},
		{Key: "_id", Value: "x"},
		{Key: keyAge, Value: 36},
		{Key: keyUpdatedAt, Value: now},
	})
	assert.Equal(t, bson.D{
		{Key: keyEmail, Value: "ada@example.com"},
		{Key: keyAge, Value: 36},
		{Key: keyUpdatedAt, Value: now},
	}, set)
}

func TestMongoRepository_MalformedIDs(t *testing.T) {
	repo := &MongoRepository{}
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-hex")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Update(ctx, "not-hex", Patch{{Key: "name", Value: "x"}})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, repo.Delete(ctx, "not-hex"))
}

func TestUserDocument_RoundTrip(t *testing.T) {
	age := 30
	doc := userDocument{
		ID:       bson.NewObjectID(),
		Email:    "ada@example.com",
		Password: "hash",
		Profile:  Profile{Name: "Ada", Age: &age, PostalCode: "N1"},
	}

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "Ada", fields["name"], "profile fields are stored inline")
	assert.Equal(t, "N1", fields["postal_code"])
	assert.NotContains(t, fields, "surname", "empty profile fields are omitted")

	var decoded userDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	u := decoded.user()
	assert.Equal(t, doc.ID.Hex(), u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	require.NotNil(t, u.Age)
	assert.Equal(t, 30, *u.Age)
}

func TestTranslateMongoError(t *testing.T) {
	assert.ErrorIs(t, translateMongoError(mongo.ErrNoDocuments), ErrNotFound)

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "dup key"}}}
	assert.ErrorIs(t, translateMongoError(dup), ErrEmailTaken)

	err := translateMongoError(errors.New("boom"))
	assert.EqualError(t, err, "db error: boom")
}

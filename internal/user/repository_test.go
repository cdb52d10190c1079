package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewInMemoryRepository(nil)
	ctx := context.Background()

	created, err := repo.Create(ctx, User{Email: "ada@example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = repo.Create(ctx, User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryRepository_Update(t *testing.T) {
	repo := NewInMemoryRepository([]User{
		{ID: "1", Email: "ada@example.com"},
		{ID: "2", Email: "bob@example.com"},
	})
	ctx := context.Background()
	now := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	updated, err := repo.Update(ctx, "1", Patch{
		{Key: "name", Value: "Ada"},
		{Key: keyAge, Value: 36},
		{Key: keyUpdatedAt, Value: now},
		{Key: "not_a_field", Value: "ignored"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)
	require.NotNil(t, updated.Age)
	assert.Equal(t, 36, *updated.Age)
	assert.Equal(t, now, updated.UpdatedAt)

	_, err = repo.Update(ctx, "1", Patch{{Key: keyEmail, Value: "bob@example.com"}})
	assert.ErrorIs(t, err, ErrEmailTaken)

	stored, err := repo.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email, "a rejected update leaves the record untouched")

	_, err = repo.Update(ctx, "missing", Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryRepository_Find(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository([]User{
		{ID: "c", Email: "c@example.com", Profile: Profile{Name: "Carol"}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "a", Email: "a@example.com", Profile: Profile{Name: "Alice"}, CreatedAt: base},
		{ID: "b", Email: "b@example.com", Profile: Profile{Surname: "Brown"}, CreatedAt: base.Add(time.Hour)},
	})
	ctx := context.Background()

	ids := func(users []User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	all, err := repo.Find(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	got, err := repo.Find(ctx, Query{Fields: nameFields, Value: "R"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(got))

	got, err = repo.Find(ctx, Query{Fields: []string{keyEmail}, Value: "A@EXAMPLE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))

	got, err = repo.Find(ctx, Query{Page: Page{Skip: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	got, err = repo.Find(ctx, Query{Page: Page{Skip: 10}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := NewInMemoryRepository([]User{{ID: "1", Email: "ada@example.com"}})
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, "1"))
	_, err := repo.GetByID(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, "1"))
}

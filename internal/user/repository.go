package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user does not exist")
	ErrEmailTaken = errors.New("email already taken")
)

// Repository persists users. Implementations return ErrNotFound for unknown
// ids and emails and ErrEmailTaken when a write would duplicate an email.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id string, patch Patch) (User, error)
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, q Query) ([]User, error)
}

type InMemoryRepository struct {
	mu    sync.RWMutex
	users []User
}

var _ Repository = (*InMemoryRepository)(nil)

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{users: make([]User, 0, len(seed))}
	for _, user := range seed {
		if user.ID == "" {
			user.ID = uuid.NewString()
		}
		repo.users = append(repo.users, user)
	}
	return repo
}

func (r *InMemoryRepository) Create(_ context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOfEmail(user.Email) >= 0 {
		return User{}, ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	r.users = append(r.users, user)
	return user, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.users[i], nil
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOfEmail(email); i >= 0 {
		return r.users[i], nil
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) Update(_ context.Context, id string, patch Patch) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return User{}, ErrNotFound
	}

	updated := r.users[i]
	patch.Apply(&updated)
	if j := r.indexOfEmail(updated.Email); j >= 0 && j != i {
		return User{}, ErrEmailTaken
	}

	r.users[i] = updated
	return updated, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexOf(id); i >= 0 {
		r.users = append(r.users[:i], r.users[i+1:]...)
	}
	return nil
}

func (r *InMemoryRepository) Find(_ context.Context, q Query) ([]User, error) {
	r.mu.RLock()
	matched := make([]User, 0)
	for _, user := range r.users {
		if matches(user, q) {
			matched = append(matched, user)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if q.Page.Skip >= int64(len(matched)) {
		return []User{}, nil
	}
	matched = matched[q.Page.Skip:]
	if q.Page.Limit > 0 && q.Page.Limit < int64(len(matched)) {
		matched = matched[:q.Page.Limit]
	}
	return matched, nil
}

func (r *InMemoryRepository) indexOf(id string) int {
	for i, user := range r.users {
		if user.ID == id {
			return i
		}
	}
	return -1
}

func (r *InMemoryRepository) indexOfEmail(email string) int {
	for i, user := range r.users {
		if user.Email == email {
			return i
		}
	}
	return -1
}

func matches(u User, q Query) bool {
	if len(q.Fields) == 0 {
		return true
	}
	needle := strings.ToLower(q.Value)
	for _, key := range q.Fields {
		var value string
		if key == keyEmail {
			value = u.Email
		} else if f, ok := lookupProfileField(key); ok {
			value = *f.ref(&u.Profile)
		}
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

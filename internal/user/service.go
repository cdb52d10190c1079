package user

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownEmail  = errors.New("email does not exist")
	ErrWrongPassword = errors.New("wrong password")
)

const DefaultPageLimit = 20

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

// Session is a user together with a freshly issued bearer token.
type Session struct {
	User  User
	Token string
}

type RegisterInput struct {
	Email    string
	Password string
	Profile  Profile
}

// UpdateInput holds the fields an update request carried. Nil pointers and
// empty strings mean "leave unchanged".
type UpdateInput struct {
	Email    *string
	Password *string
	Age      *int
	Profile  map[string]string
}

type Service struct {
	repo     Repository
	hasher   PasswordHasher
	tokens   TokenIssuer
	maxLimit int64
	now      func() time.Time
}

type Option func(*Service)

// WithMaxLimit caps the page size List and Search return.
func WithMaxLimit(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, hasher PasswordHasher, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		maxLimit: 100,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if err := validateEmail(in.Email); err != nil {
		return Session{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return Session{}, err
	}
	if err := validateAge(in.Profile.Age); err != nil {
		return Session{}, err
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, User{
		Email:        in.Email,
		PasswordHash: hashed,
		Profile:      in.Profile,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(created)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if email == "" {
		return Session{}, ErrEmailRequired
	}
	if password == "" {
		return Session{}, ErrPasswordRequired
	}

	found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnknownEmail
		}
		return Session{}, err
	}
	if !s.hasher.Verify(password, found.PasswordHash) {
		return Session{}, ErrWrongPassword
	}
	return s.session(found)
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update writes the non-empty fields of in and returns the stored result
// with a new token.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Session, error) {
	patch := Patch{}

	if in.Email != nil && *in.Email != "" {
		if err := validateEmail(*in.Email); err != nil {
			return Session{}, err
		}
		patch = append(patch, Field{keyEmail, *in.Email})
	}
	if in.Password != nil && *in.Password != "" {
		if err := validatePassword(*in.Password); err != nil {
			return Session{}, err
		}
		hashed, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return Session{}, fmt.Errorf("hash password: %w", err)
		}
		patch = append(patch, Field{keyPassword, hashed})
	}
	if in.Age != nil {
		if err := validateAge(in.Age); err != nil {
			return Session{}, err
		}
		patch = append(patch, Field{keyAge, *in.Age})
	}
	for _, f := range profileFields {
		if v := in.Profile[f.key]; v != "" {
			patch = append(patch, Field{f.key, v})
		}
	}
	patch = append(patch, Field{keyUpdatedAt, s.now().UTC()})

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Session{}, err
	}
	return s.session(updated)
}

// Search matches value against the field named by key, or against the name
// fields when key is AllFieldsKey.
func (s *Service) Search(ctx context.Context, key, value string, page Page) ([]User, error) {
	var fields []string
	switch {
	case key == AllFieldsKey:
		fields = nameFields
	case Searchable(key):
		fields = []string{key}
	default:
		return nil, ErrInvalidSearchKey
	}

	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, Query{Fields: fields, Value: value, Page: page})
}

func (s *Service) List(ctx context.Context, page Page) ([]User, error) {
	page, err := s.normalizePage(page)
	if err != nil {
		return nil, err
	}
	return s.repo.Find(ctx, Query{Page: page})
}

// Delete removes the user. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) normalizePage(p Page) (Page, error) {
	if p.Skip < 0 || p.Limit < 0 {
		return Page{}, ErrInvalidPagination
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > s.maxLimit {
		p.Limit = s.maxLimit
	}
	return p, nil
}

func (s *Service) session(u User) (Session, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: u, Token: token}, nil
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/wichananm65/userd/internal/user/migrations"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

// userColumns is the column order every query selects and scanUser reads.
var userColumns = func() []string {
	cols := []string{"id", keyEmail, keyPassword, keyAge}
	for _, f := range profileFields {
		cols = append(cols, f.key)
	}
	return append(cols, keyCreatedAt, keyUpdatedAt)
}()

var (
	selectColumns = strings.Join(userColumns, ", ")

	getUserByIDQuery    = `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	getUserByEmailQuery = `SELECT ` + selectColumns + ` FROM users WHERE email = $1`
	insertUserQuery     = `INSERT INTO users (` + selectColumns + `) VALUES (` + placeholders(1, len(userColumns)) + `)`
	deleteUserQuery     = `DELETE FROM users WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a pgx-backed pool for dsn and checks it is reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	args := []any{user.ID, user.Email, user.PasswordHash, nullableAge(user.Age)}
	for _, f := range profileFields {
		args = append(args, *f.ref(&user.Profile))
	}
	args = append(args, user.CreatedAt, user.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, insertUserQuery, args...); err != nil {
		return User{}, translateError(err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return r.getOne(ctx, getUserByIDQuery, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, getUserByEmailQuery, email)
}

func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	for _, f := range patch {
		if !patchable(f.Key) {
			continue
		}
		args = append(args, f.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(f.Key), len(args)))
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), selectColumns)
	return r.getOne(ctx, query, args...)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, deleteUserQuery, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, q Query) ([]User, error) {
	var (
		where string
		args  []any
	)
	if len(q.Fields) > 0 {
		conds := make([]string, 0, len(q.Fields))
		for _, key := range q.Fields {
			if !Searchable(key) {
				return nil, ErrInvalidSearchKey
			}
			conds = append(conds, fmt.Sprintf("COALESCE(%s, '') ILIKE $1", pq.QuoteIdentifier(key)))
		}
		args = append(args, "%"+escapeLike(q.Value)+"%")
		where = " WHERE " + strings.Join(conds, " OR ")
	}

	query := `SELECT ` + selectColumns + ` FROM users` + where + ` ORDER BY created_at, id`
	if q.Page.Limit > 0 {
		args = append(args, q.Page.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Page.Skip > 0 {
		args = append(args, q.Page.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return User{}, translateError(err)
	}
	return user, nil
}

func scanUser(row rowScanner) (User, error) {
	var (
		user User
		age  sql.NullInt64
	)
	dest := []any{&user.ID, &user.Email, &user.PasswordHash, &age}
	for _, f := range profileFields {
		dest = append(dest, f.ref(&user.Profile))
	}
	dest = append(dest, &user.CreatedAt, &user.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return User{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		user.Age = &v
	}
	return user, nil
}

func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return fmt.Errorf("db error: %w", err)
}

func nullableAge(age *int) any {
	if age == nil {
		return nil
	}
	return *age
}

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskhub/internal/models"

	"github.com/lib/pq"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, username, email, password, photo, created_at, updated_at"

func scanUser(row *sql.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.Photo, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// Create inserts a new user. Email is case-normalized before storage; a
// violation of the unique email index is reported as ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, username, email, hashedPassword string, photo *string) (models.User, error) {
	id := NewID()
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO users (id, username, email, password, photo) VALUES ($1, $2, $3, $4, $5) RETURNING "+userColumns,
		id, username, strings.ToLower(email), hashedPassword, photo)
	u, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(email))
	return scanUser(row)
}

// Exists is the auth-gate check for tokens whose user may have vanished.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = $1", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateProfile modifies only the fields that are non-nil and returns the
// updated row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, username, photo *string) (models.User, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE users
        SET username = COALESCE($1, username),
            photo = COALESCE($2, photo),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
        RETURNING `+userColumns,
		username, photo, id)
	return scanUser(row)
}

// ClearPhoto sets the photo reference to NULL and returns the updated row.
func (r *UserRepository) ClearPhoto(ctx context.Context, id string) (models.User, error) {
	row := r.db.QueryRowContext(ctx, `
        UPDATE users
        SET photo = NULL, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING `+userColumns,
		id)
	return scanUser(row)
}

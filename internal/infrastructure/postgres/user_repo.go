package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, first_name, last_name, is_verified,
	google_id, github_id, reset_password_otp, reset_password_expires,
	created_at, updated_at`

type UserRepository struct {
	pool   *pgxpool.Pool
	hasher password.Hasher
}

func NewUserRepository(pool *pgxpool.Pool, hasher password.Hasher) *UserRepository {
	return &UserRepository{pool: pool, hasher: hasher}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		domain.NormalizeEmail(email))
	return scanUser(row)
}

func (r *UserRepository) FindByProvider(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	column, err := providerColumn(provider)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, providerID)
	return scanUser(row)
}

func (r *UserRepository) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	var hash *string
	if in.Password != "" {
		h, err := r.hasher.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, is_verified, google_id, github_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	row := r.pool.QueryRow(ctx, query,
		domain.NormalizeEmail(in.Email),
		hash,
		in.FirstName,
		in.LastName,
		in.IsVerified,
		in.GoogleID,
		in.GitHubID,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapUniqueViolation(err)
	}
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	var newHash *string
	if u.PlainPassword != "" {
		h, err := r.hasher.Hash(u.PlainPassword)
		if err != nil {
			return err
		}
		newHash = &h
	}

	query := `
		UPDATE users
		SET    email                  = $2,
		       password_hash          = COALESCE($3, password_hash),
		       first_name             = $4,
		       last_name              = $5,
		       is_verified            = $6,
		       google_id              = $7,
		       github_id              = $8,
		       reset_password_otp     = $9,
		       reset_password_expires = $10,
		       updated_at             = NOW()
		WHERE  id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.ID,
		domain.NormalizeEmail(u.Email),
		newHash,
		u.FirstName,
		u.LastName,
		u.IsVerified,
		u.GoogleID,
		u.GitHubID,
		u.ResetPasswordOTP,
		u.ResetPasswordExpires,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return mapUniqueViolation(fmt.Errorf("%w: update user: %w", domain.ErrStorage, err))
	}

	if newHash != nil {
		u.PasswordHash = newHash
		u.PlainPassword = ""
	}
	return nil
}

func (r *UserRepository) ConsumeResetOTP(ctx context.Context, id, code, newPassword string, now time.Time) error {
	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET    password_hash          = $2,
		       reset_password_otp     = NULL,
		       reset_password_expires = NULL,
		       updated_at             = NOW()
		WHERE  id = $1
		  AND  reset_password_otp = $3
		  AND  reset_password_expires >= $4`

	tag, err := r.pool.Exec(ctx, query, id, hash, code, now)
	if err != nil {
		return fmt.Errorf("%w: consume reset otp: %w", domain.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeMismatch
	}
	return nil
}

func providerColumn(p domain.Provider) (string, error) {
	switch p {
	case domain.ProviderGoogle:
		return "google_id", nil
	case domain.ProviderGitHub:
		return "github_id", nil
	default:
		return "", fmt.Errorf("unknown provider %q", p)
	}
}

// mapUniqueViolation turns 23505 errors into the matching domain error.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_google_id_key", "users_github_id_key":
		return domain.ErrIdentityLinked
	default:
		return domain.ErrDuplicateEmail
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsVerified,
		&u.GoogleID,
		&u.GitHubID,
		&u.ResetPasswordOTP,
		&u.ResetPasswordExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: scan user: %w", domain.ErrStorage, err)
	}
	return &u, nil
}

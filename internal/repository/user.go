package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

// UserRepository is the user store the account flows depend on. Missing rows
// are domain.ErrUserNotFound; backend failures wrap domain.ErrStorage.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByProvider(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error)

	// Create hashes in.Password (when set) and inserts the user. A taken email
	// is domain.ErrDuplicateEmail, a taken provider id domain.ErrIdentityLinked.
	Create(ctx context.Context, in domain.NewUser) (*domain.User, error)

	// Save writes every mutable field of u in one statement, hashing
	// u.PlainPassword into the password hash when it is set.
	Save(ctx context.Context, u *domain.User) error

	// ConsumeResetOTP sets a new password and clears the reset fields only
	// while the stored reset code equals code and has not expired at now. When the
	// guard fails nothing changes and it returns domain.ErrCodeMismatch.
	ConsumeResetOTP(ctx context.Context, id, code, newPassword string, now time.Time) error
}

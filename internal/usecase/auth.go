package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/ErlanBelekov/account-service/internal/repository"
	"github.com/ErlanBelekov/account-service/internal/token"
	"github.com/golang-jwt/jwt/v5"
)

const defaultJWTTTL = 24 * time.Hour

type AuthUsecase struct {
	users  repository.UserRepository
	hasher password.Hasher
	issuer token.Issuer
	mail   notifier
	jwtTTL time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthUsecase(users repository.UserRepository, hasher password.Hasher, issuer token.Issuer, sender email.Sender, logger *slog.Logger) *AuthUsecase {
	logger = logger.With("component", "auth")
	return &AuthUsecase{
		users:  users,
		hasher: hasher,
		issuer: issuer,
		mail:   notifier{sender: sender, logger: logger},
		jwtTTL: defaultJWTTTL,
		now:    time.Now,
		logger: logger,
	}
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IP        string
}

// Login checks the password and returns a signed session token. A login
// alert is mailed best-effort.
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (string, error) {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if user.PasswordHash == nil {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", domain.ErrInvalidCredentials
	}
	if err := u.hasher.Compare(*user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}

	if !user.IsVerified {
		metrics.LoginsTotal.WithLabelValues("unverified").Inc()
		return "", domain.ErrEmailNotVerified
	}

	signed, err := u.IssueToken(user)
	if err != nil {
		return "", err
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()

	device := in.UserAgent
	if device == "" {
		device = "Unknown device"
	}
	ip := in.IP
	if ip == "" {
		ip = "Unknown location"
	}
	u.mail.bestEffort(ctx, user.Email, email.LoginAlert(user.FirstName, u.now(), device, ip))
	return signed, nil
}

// IssueToken signs a session token for user.
func (u *AuthUsecase) IssueToken(user *domain.User) (string, error) {
	return u.issuer.Sign(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
	}, u.jwtTTL)
}

// CheckEmail reports whether any user owns emailAddr.
func (u *AuthUsecase) CheckEmail(ctx context.Context, emailAddr string) (bool, error) {
	_, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("find user: %w", err)
}

func (u *AuthUsecase) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

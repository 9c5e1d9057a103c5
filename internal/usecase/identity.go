package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

// IdentityUsecase maps an external OAuth identity onto a local user.
type IdentityUsecase struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewIdentityUsecase(users repository.UserRepository, logger *slog.Logger) *IdentityUsecase {
	return &IdentityUsecase{users: users, logger: logger.With("component", "identity")}
}

// Resolve returns the user linked to the profile's provider id, links the
// provider to the user owning the profile's email, or creates a new verified
// user, in that order. Every failure wraps domain.ErrIdentityResolution.
func (u *IdentityUsecase) Resolve(ctx context.Context, p domain.OAuthProfile) (*domain.User, error) {
	if !p.Provider.Valid() || p.ProviderID == "" {
		return nil, fmt.Errorf("%w: incomplete %q profile", domain.ErrIdentityResolution, p.Provider)
	}

	user, result, err := u.resolve(ctx, p)
	if errors.Is(err, domain.ErrDuplicateEmail) || errors.Is(err, domain.ErrIdentityLinked) {
		// a concurrent callback created the user first
		user, result, err = u.resolve(ctx, p)
	}
	if err != nil {
		metrics.IdentityResolutionsTotal.WithLabelValues(string(p.Provider), "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentityResolution, err)
	}

	metrics.IdentityResolutionsTotal.WithLabelValues(string(p.Provider), result).Inc()
	u.logger.InfoContext(ctx, "identity resolved", "provider", p.Provider, "user_id", user.ID, "result", result)
	return user, nil
}

func (u *IdentityUsecase) resolve(ctx context.Context, p domain.OAuthProfile) (*domain.User, string, error) {
	user, err := u.users.FindByProvider(ctx, p.Provider, p.ProviderID)
	if err == nil {
		return user, "existing", nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", fmt.Errorf("find by provider: %w", err)
	}

	addr := domain.NormalizeEmail(p.Email)
	if addr != "" {
		user, err = u.users.FindByEmail(ctx, addr)
		if err == nil {
			user.LinkProvider(p.Provider, p.ProviderID)
			if err := u.users.Save(ctx, user); err != nil {
				return nil, "", fmt.Errorf("link provider: %w", err)
			}
			return user, "linked", nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", fmt.Errorf("find by email: %w", err)
		}
	} else {
		addr = fmt.Sprintf("%s@%s.com", p.ProviderID, p.Provider)
	}

	first, last := profileNames(p)
	in := domain.NewUser{
		Email:      addr,
		FirstName:  first,
		LastName:   last,
		IsVerified: true,
	}
	id := p.ProviderID
	switch p.Provider {
	case domain.ProviderGoogle:
		in.GoogleID = &id
	case domain.ProviderGitHub:
		in.GitHubID = &id
	}

	user, err = u.users.Create(ctx, in)
	if err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	return user, "created", nil
}

// profileNames prefers the structured names and falls back to splitting the display name.
func profileNames(p domain.OAuthProfile) (first, last string) {
	if p.GivenName != "" || p.FamilyName != "" {
		return p.GivenName, p.FamilyName
	}
	first, last, _ = strings.Cut(strings.TrimSpace(p.DisplayName), " ")
	return first, strings.TrimSpace(last)
}

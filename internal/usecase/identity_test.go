package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/usecase"
)

func googleProfile(id, email string) domain.OAuthProfile {
	return domain.OAuthProfile{
		Provider:   domain.ProviderGoogle,
		ProviderID: id,
		Email:      email,
		GivenName:  "Grace",
		FamilyName: "Hopper",
	}
}

func TestResolve_LinksExistingPasswordAccount(t *testing.T) {
	users := newMemUserRepo()
	existing := users.seed(t, "a@x.com", "secret-password")
	uc := usecase.NewIdentityUsecase(users, testLogger())

	user, err := uc.Resolve(context.Background(), googleProfile("42", "A@X.com"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.ID != existing.ID {
		t.Fatalf("resolved user %q, want existing %q", user.ID, existing.ID)
	}
	if users.count() != 1 {
		t.Fatalf("stored users = %d, want 1", users.count())
	}

	stored := users.get(t, existing.ID)
	if stored.GoogleID == nil || *stored.GoogleID != "42" {
		t.Errorf("google id = %v, want 42", stored.GoogleID)
	}
	if stored.PasswordHash == nil || *stored.PasswordHash != "hashed:secret-password" {
		t.Error("linking touched the password")
	}
}

func TestResolve_ReturnsAlreadyLinkedUser(t *testing.T) {
	users := newMemUserRepo()
	uc := usecase.NewIdentityUsecase(users, testLogger())
	ctx := context.Background()

	first, err := uc.Resolve(ctx, googleProfile("42", "grace@example.com"))
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	savesBefore := users.saves

	second, err := uc.Resolve(ctx, googleProfile("42", "grace@example.com"))
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second Resolve returned %q, want %q", second.ID, first.ID)
	}
	if users.count() != 1 || users.creates != 1 {
		t.Errorf("users = %d creates = %d, want 1 and 1", users.count(), users.creates)
	}
	if users.saves != savesBefore {
		t.Error("already linked identity was saved again")
	}
}

func TestResolve_CreatesNewVerifiedUser(t *testing.T) {
	users := newMemUserRepo()
	uc := usecase.NewIdentityUsecase(users, testLogger())

	user, err := uc.Resolve(context.Background(), googleProfile("7", "Grace@Example.com"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Email != "grace@example.com" {
		t.Errorf("email = %q", user.Email)
	}
	if !user.IsVerified {
		t.Error("oauth user not verified")
	}
	if user.PasswordHash != nil {
		t.Error("oauth-only user has a password hash")
	}
	if user.FirstName != "Grace" || user.LastName != "Hopper" {
		t.Errorf("names = %q %q", user.FirstName, user.LastName)
	}
	if user.GoogleID == nil || *user.GoogleID != "7" || user.GitHubID != nil {
		t.Errorf("provider ids google=%v github=%v", user.GoogleID, user.GitHubID)
	}
}

func TestResolve_GitHubWithoutEmailUsesPlaceholder(t *testing.T) {
	users := newMemUserRepo()
	uc := usecase.NewIdentityUsecase(users, testLogger())

	user, err := uc.Resolve(context.Background(), domain.OAuthProfile{
		Provider:    domain.ProviderGitHub,
		ProviderID:  "9001",
		DisplayName: "Linus Benedict Torvalds",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if user.Email != "9001@github.com" {
		t.Errorf("email = %q, want placeholder", user.Email)
	}
	if user.FirstName != "Linus" || user.LastName != "Benedict Torvalds" {
		t.Errorf("names = %q %q", user.FirstName, user.LastName)
	}
	if user.GitHubID == nil || *user.GitHubID != "9001" {
		t.Errorf("github id = %v", user.GitHubID)
	}
}

func TestResolve_SecondProviderLinksSameUser(t *testing.T) {
	users := newMemUserRepo()
	uc := usecase.NewIdentityUsecase(users, testLogger())
	ctx := context.Background()

	g, err := uc.Resolve(ctx, googleProfile("42", "grace@example.com"))
	if err != nil {
		t.Fatalf("google Resolve: %v", err)
	}
	gh, err := uc.Resolve(ctx, domain.OAuthProfile{
		Provider:   domain.ProviderGitHub,
		ProviderID: "77",
		Email:      "grace@example.com",
	})
	if err != nil {
		t.Fatalf("github Resolve: %v", err)
	}
	if gh.ID != g.ID {
		t.Fatalf("github resolved %q, want %q", gh.ID, g.ID)
	}
	stored := users.get(t, g.ID)
	if stored.GoogleID == nil || stored.GitHubID == nil {
		t.Errorf("both providers should be linked: google=%v github=%v", stored.GoogleID, stored.GitHubID)
	}
}

func TestResolve_ConcurrentCreateIsRetried(t *testing.T) {
	users := newMemUserRepo()
	uc := usecase.NewIdentityUsecase(users, testLogger())

	var racer *domain.User
	users.beforeCreate = func() {
		// another callback for the same identity wins the insert
		id := "42"
		u, err := users.Create(context.Background(), domain.NewUser{
			Email:      "grace@example.com",
			IsVerified: true,
			GoogleID:   &id,
		})
		if err != nil {
			t.Errorf("racing create: %v", err)
			return
		}
		racer = u
	}

	user, err := uc.Resolve(context.Background(), googleProfile("42", "grace@example.com"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if racer == nil || user.ID != racer.ID {
		t.Fatalf("resolved %q, want the concurrently created user", user.ID)
	}
	if users.count() != 1 {
		t.Errorf("stored users = %d, want 1", users.count())
	}
}

func TestResolve_StorageFailure(t *testing.T) {
	users := newMemUserRepo()
	users.findErr = domain.ErrStorage
	uc := usecase.NewIdentityUsecase(users, testLogger())

	_, err := uc.Resolve(context.Background(), googleProfile("42", "grace@example.com"))
	if !errors.Is(err, domain.ErrIdentityResolution) {
		t.Fatalf("err = %v, want ErrIdentityResolution", err)
	}
	if !errors.Is(err, domain.ErrStorage) {
		t.Errorf("err = %v, want cause ErrStorage kept", err)
	}
}

func TestResolve_IncompleteProfile(t *testing.T) {
	uc := usecase.NewIdentityUsecase(newMemUserRepo(), testLogger())

	tests := []struct {
		name    string
		profile domain.OAuthProfile
	}{
		{"missing id", domain.OAuthProfile{Provider: domain.ProviderGoogle, Email: "a@x.com"}},
		{"unknown provider", domain.OAuthProfile{Provider: "myspace", ProviderID: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Resolve(context.Background(), tt.profile)
			if !errors.Is(err, domain.ErrIdentityResolution) {
				t.Fatalf("err = %v, want ErrIdentityResolution", err)
			}
		})
	}
}

package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrThrottled          = errors.New("otp already sent, please wait before retrying")
	ErrChallengeNotFound  = errors.New("otp expired or not found")
	ErrChallengeExpired   = errors.New("otp expired")
	ErrCodeMismatch       = errors.New("invalid otp")
	ErrDuplicateEmail     = errors.New("user already exists with this email")
	ErrIdentityLinked     = errors.New("provider identity already linked to a user")
	ErrUserNotFound       = errors.New("user not found")
	ErrStorage            = errors.New("storage error")
	ErrNotificationFailed = errors.New("notification failed")
	ErrIdentityResolution = errors.New("identity resolution failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email is not verified")
	ErrUnauthorized       = errors.New("unauthorized")
)

// Provider names a federated identity source.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

type User struct {
	ID           string
	Email        string
	PasswordHash *string // nil for accounts created through OAuth only
	FirstName    string
	LastName     string
	IsVerified   bool

	GoogleID *string
	GitHubID *string

	ResetPasswordOTP     *string
	ResetPasswordExpires *time.Time

	// PlainPassword, when set, is hashed into PasswordHash by the next Save.
	PlainPassword string `json:"-"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProviderID returns the id linked for p, or "" when none is linked.
func (u *User) ProviderID(p Provider) string {
	var id *string
	switch p {
	case ProviderGoogle:
		id = u.GoogleID
	case ProviderGitHub:
		id = u.GitHubID
	}
	if id == nil {
		return ""
	}
	return *id
}

// LinkProvider attaches providerID under the field for p.
func (u *User) LinkProvider(p Provider, providerID string) {
	id := providerID
	switch p {
	case ProviderGoogle:
		u.GoogleID = &id
	case ProviderGitHub:
		u.GitHubID = &id
	}
}

func (u *User) ClearResetOTP() {
	u.ResetPasswordOTP = nil
	u.ResetPasswordExpires = nil
}

// NewUser is the input for creating a user. Password is the raw password;
// empty means the account has no password login.
type NewUser struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	IsVerified bool
	GoogleID   *string
	GitHubID   *string
}

// OAuthProfile is what a provider handshake yields about the external user.
type OAuthProfile struct {
	Provider    Provider
	ProviderID  string
	Email       string // may be empty when the provider hides it
	GivenName   string
	FamilyName  string
	DisplayName string
}

// NormalizeEmail trims and lower-cases an address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Package otp stores pending one-time-passcode challenges keyed by email and
// purpose, and enforces their resend cooldown, expiry and single use.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/metrics"
)

const (
	DefaultCooldown         = 60 * time.Second
	DefaultRegistrationTTL  = 5 * time.Minute
	DefaultPasswordResetTTL = 10 * time.Minute
)

// Ledger is the contract shared by all challenge stores. Every operation is
// atomic for its (email, purpose) key.
type Ledger interface {
	// Issue stores a fresh challenge, or fails with domain.ErrThrottled if one
	// was issued for the key less than the cooldown ago.
	Issue(ctx context.Context, email string, purpose domain.Purpose, staged *domain.StagedProfile) (*domain.Challenge, error)
	// Resend regenerates the code of an existing challenge, keeping its staged profile.
	Resend(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error)
	// Consume checks code and removes the challenge when it matches.
	Consume(ctx context.Context, email string, purpose domain.Purpose, code string) (*domain.Challenge, error)
	// Discard removes the challenge for the key if there is one.
	Discard(ctx context.Context, email string, purpose domain.Purpose) error
}

// Policy holds the timing rules of a ledger.
type Policy struct {
	Cooldown         time.Duration
	RegistrationTTL  time.Duration
	PasswordResetTTL time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Cooldown:         DefaultCooldown,
		RegistrationTTL:  DefaultRegistrationTTL,
		PasswordResetTTL: DefaultPasswordResetTTL,
	}
}

// TTL returns how long a challenge for purpose stays consumable.
func (p Policy) TTL(purpose domain.Purpose) time.Duration {
	if purpose == domain.PurposePasswordReset {
		return p.PasswordResetTTL
	}
	return p.RegistrationTTL
}

// CodeGenerator produces a new passcode.
type CodeGenerator func() (string, error)

// GenerateCode returns a uniformly random 6-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// Option customizes a ledger.
type Option func(*options)

type options struct {
	policy  Policy
	now     func() time.Time
	newCode CodeGenerator
}

func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(o *options) { o.newCode = gen }
}

func buildOptions(opts []Option) options {
	o := options{
		policy:  DefaultPolicy(),
		now:     time.Now,
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func codesEqual(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

func observe(purpose domain.Purpose, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrThrottled):
		outcome = "throttled"
	case errors.Is(err, domain.ErrChallengeNotFound):
		outcome = "not_found"
	case errors.Is(err, domain.ErrChallengeExpired):
		outcome = "expired"
	case errors.Is(err, domain.ErrCodeMismatch):
		outcome = "mismatch"
	default:
		outcome = "error"
	}
	metrics.OTPOperationsTotal.WithLabelValues(string(purpose), op, outcome).Inc()
}

func copyStaged(s *domain.StagedProfile) *domain.StagedProfile {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

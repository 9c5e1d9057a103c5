package usecase_test

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/password"
)

// ---- user store ----

// memUserRepo is a minimal in-memory user store with unique email and
// provider id constraints. Lookups return copies, like a real database.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	seq    int
	hasher password.Hasher

	findErr   error
	createErr error
	saveErr   error

	// beforeCreate runs without the lock held, before the insert is attempted.
	beforeCreate func()
	// afterFindByEmail runs without the lock held, after a successful lookup.
	afterFindByEmail func()

	creates int
	saves   int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User), hasher: fakeHasher{}}
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	u, err := r.findByEmail(email)
	if err == nil && r.afterFindByEmail != nil {
		r.afterFindByEmail()
	}
	return u, err
}

func (r *memUserRepo) findByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.Email == domain.NormalizeEmail(email) {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) FindByProvider(_ context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if u.ProviderID(provider) == providerID {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) Create(_ context.Context, in domain.NewUser) (*domain.User, error) {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}

	u := &domain.User{
		Email:      domain.NormalizeEmail(in.Email),
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		IsVerified: in.IsVerified,
		GoogleID:   in.GoogleID,
		GitHubID:   in.GitHubID,
	}
	if err := r.checkUnique(u); err != nil {
		return nil, err
	}
	if in.Password != "" {
		h, _ := r.hasher.Hash(in.Password)
		u.PasswordHash = &h
	}

	r.seq++
	u.ID = fmt.Sprintf("user-%d", r.seq)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = u
	r.creates++

	c := *u
	return &c, nil
}

func (r *memUserRepo) Save(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}

	next := *u
	next.PasswordHash = stored.PasswordHash
	if u.PlainPassword != "" {
		h, _ := r.hasher.Hash(u.PlainPassword)
		next.PasswordHash = &h
		u.PasswordHash = &h
		u.PlainPassword = ""
	}
	next.PlainPassword = ""
	next.UpdatedAt = time.Now()
	r.users[u.ID] = &next
	r.saves++
	return nil
}

func (r *memUserRepo) ConsumeResetOTP(_ context.Context, id, code, newPassword string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.users[id]
	if !ok || stored.ResetPasswordOTP == nil || *stored.ResetPasswordOTP != code ||
		stored.ResetPasswordExpires == nil || now.After(*stored.ResetPasswordExpires) {
		return domain.ErrCodeMismatch
	}

	h, _ := r.hasher.Hash(newPassword)
	next := *stored
	next.PasswordHash = &h
	next.ClearResetOTP()
	next.UpdatedAt = time.Now()
	r.users[id] = &next
	r.saves++
	return nil
}

// checkUnique must be called with r.mu held.
func (r *memUserRepo) checkUnique(u *domain.User) error {
	for _, other := range r.users {
		if other.ID == u.ID {
			continue
		}
		if other.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
		for _, p := range []domain.Provider{domain.ProviderGoogle, domain.ProviderGitHub} {
			if id := u.ProviderID(p); id != "" && other.ProviderID(p) == id {
				return domain.ErrIdentityLinked
			}
		}
	}
	return nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *memUserRepo) get(t *testing.T, id string) *domain.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		t.Fatalf("user %q not stored", id)
	}
	c := *u
	return &c
}

// seed stores a verified password user and returns it.
func (r *memUserRepo) seed(t *testing.T, email, rawPassword string) *domain.User {
	t.Helper()
	u, err := r.Create(context.Background(), domain.NewUser{
		Email:      email,
		Password:   rawPassword,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		IsVerified: true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// ---- hasher ----

type fakeHasher struct{}

func (fakeHasher) Hash(raw string) (string, error) { return "hashed:" + raw, nil }

func (fakeHasher) Compare(hash, raw string) error {
	if hash != "hashed:"+raw {
		return password.ErrMismatch
	}
	return nil
}

// ---- email ----

type sentEmail struct {
	to, subject, body string
}

// recordingSender records every mail; failSubjects makes matching sends fail.
type recordingSender struct {
	mu           sync.Mutex
	sent         []sentEmail
	failSubjects map[string]error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failSubjects[subject]; ok {
		return err
	}
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (s *recordingSender) failOn(subject string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSubjects == nil {
		s.failSubjects = make(map[string]error)
	}
	s.failSubjects[subject] = err
}

func (s *recordingSender) clearFailures() {
	s.mu.Lock()
	s.failSubjects = nil
	s.mu.Unlock()
}

func (s *recordingSender) last(t *testing.T) sentEmail {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("no email sent")
	}
	return s.sent[len(s.sent)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// codeFrom extracts the 6-digit OTP from an email body.
func codeFrom(t *testing.T, m sentEmail) string {
	t.Helper()
	code := codePattern.FindString(m.body)
	if code == "" {
		t.Fatalf("email body %q does not contain a 6-digit code", m.body)
	}
	return code
}

// ---- clock ----

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }

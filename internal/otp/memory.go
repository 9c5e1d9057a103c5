package otp

import (
	"context"
	"sync"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
)

type memoryKey struct {
	email   string
	purpose domain.Purpose
}

type memoryEntry struct {
	code     string
	issuedAt time.Time
	staged   *domain.StagedProfile
}

// MemoryLedger keeps challenges in process memory. All mutations are
// serialized behind one mutex; pending challenges are lost on restart.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[memoryKey]memoryEntry
	opts    options
}

func NewMemoryLedger(opts ...Option) *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[memoryKey]memoryEntry),
		opts:    buildOptions(opts),
	}
}

func (l *MemoryLedger) Issue(_ context.Context, email string, purpose domain.Purpose, staged *domain.StagedProfile) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "issue", err) }()

	k := memoryKey{email: domain.NormalizeEmail(email), purpose: purpose}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.now()
	if e, ok := l.entries[k]; ok && now.Sub(e.issuedAt) < l.opts.policy.Cooldown {
		return nil, domain.ErrThrottled
	}

	code, err := l.opts.newCode()
	if err != nil {
		return nil, err
	}
	e := memoryEntry{code: code, issuedAt: now, staged: copyStaged(staged)}
	l.entries[k] = e
	return e.challenge(k), nil
}

func (l *MemoryLedger) Resend(_ context.Context, email string, purpose domain.Purpose) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "resend", err) }()

	k := memoryKey{email: domain.NormalizeEmail(email), purpose: purpose}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[k]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	now := l.opts.now()
	if now.Sub(e.issuedAt) < l.opts.policy.Cooldown {
		return nil, domain.ErrThrottled
	}

	code, err := l.opts.newCode()
	if err != nil {
		return nil, err
	}
	e.code = code
	e.issuedAt = now
	l.entries[k] = e
	return e.challenge(k), nil
}

func (l *MemoryLedger) Consume(_ context.Context, email string, purpose domain.Purpose, code string) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "consume", err) }()

	k := memoryKey{email: domain.NormalizeEmail(email), purpose: purpose}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[k]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	if l.opts.now().Sub(e.issuedAt) > l.opts.policy.TTL(purpose) {
		delete(l.entries, k)
		return nil, domain.ErrChallengeExpired
	}
	if !codesEqual(e.code, code) {
		return nil, domain.ErrCodeMismatch
	}

	delete(l.entries, k)
	return e.challenge(k), nil
}

func (l *MemoryLedger) Discard(_ context.Context, email string, purpose domain.Purpose) error {
	k := memoryKey{email: domain.NormalizeEmail(email), purpose: purpose}

	l.mu.Lock()
	delete(l.entries, k)
	l.mu.Unlock()
	return nil
}

// PurgeExpired drops every challenge past its expiry window and reports how many went.
func (l *MemoryLedger) PurgeExpired(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.opts.now()
	purged := 0
	for k, e := range l.entries {
		if now.Sub(e.issuedAt) > l.opts.policy.TTL(k.purpose) {
			delete(l.entries, k)
			purged++
		}
	}
	return purged, nil
}

// Len reports the number of stored challenges, expired or not.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (e memoryEntry) challenge(k memoryKey) *domain.Challenge {
	return &domain.Challenge{
		Email:    k.email,
		Purpose:  k.purpose,
		Code:     e.code,
		IssuedAt: e.issuedAt,
		Staged:   copyStaged(e.staged),
	}
}

package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ARGV: now_ms, cooldown_ms, ttl_ms, code, staged_json
var redisIssueScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local issued = redis.call("HGET", key, "issued_at")
if issued and now - tonumber(issued) < tonumber(ARGV[2]) then
  return {"throttled"}
end
redis.call("DEL", key)
redis.call("HSET", key, "code", ARGV[4], "issued_at", ARGV[1], "staged", ARGV[5])
redis.call("PEXPIRE", key, 2 * tonumber(ARGV[3]))
return {"ok", ARGV[5]}
`)

// ARGV: now_ms, cooldown_ms, ttl_ms, code
var redisResendScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local issued = redis.call("HGET", key, "issued_at")
if not issued then
  return {"not_found"}
end
if now - tonumber(issued) < tonumber(ARGV[2]) then
  return {"throttled"}
end
redis.call("HSET", key, "code", ARGV[4], "issued_at", ARGV[1])
redis.call("PEXPIRE", key, 2 * tonumber(ARGV[3]))
return {"ok", redis.call("HGET", key, "staged") or ""}
`)

// ARGV: now_ms, ttl_ms, candidate
var redisConsumeScript = redis.NewScript(`
local key = KEYS[1]
local fields = redis.call("HMGET", key, "code", "issued_at", "staged")
if not fields[2] then
  return {"not_found"}
end
if tonumber(ARGV[1]) - tonumber(fields[2]) > tonumber(ARGV[2]) then
  redis.call("DEL", key)
  return {"expired"}
end
if fields[1] ~= ARGV[3] then
  return {"mismatch"}
end
redis.call("DEL", key)
return {"ok", fields[3] or "", fields[1], fields[2]}
`)

// RedisLedger keeps challenges in Redis so they survive restarts and are
// shared between replicas. Each operation runs as a single Lua script.
// Keys live for twice the challenge TTL so a late Consume still reports
// domain.ErrChallengeExpired; Redis drops them after that.
type RedisLedger struct {
	client redis.UniversalClient
	prefix string
	opts   options
}

func NewRedisLedger(client redis.UniversalClient, prefix string, opts ...Option) *RedisLedger {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisLedger{client: client, prefix: prefix, opts: buildOptions(opts)}
}

func (l *RedisLedger) redisKey(email string, purpose domain.Purpose) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, purpose, domain.NormalizeEmail(email))
}

func (l *RedisLedger) Issue(ctx context.Context, email string, purpose domain.Purpose, staged *domain.StagedProfile) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "issue", err) }()

	code, err := l.opts.newCode()
	if err != nil {
		return nil, err
	}
	stagedJSON := ""
	if staged != nil {
		raw, err := json.Marshal(staged)
		if err != nil {
			return nil, fmt.Errorf("encode staged profile: %w", err)
		}
		stagedJSON = string(raw)
	}

	now := l.opts.now()
	values, err := l.run(ctx, redisIssueScript, email, purpose,
		now.UnixMilli(),
		l.opts.policy.Cooldown.Milliseconds(),
		l.opts.policy.TTL(purpose).Milliseconds(),
		code,
		stagedJSON,
	)
	if err != nil {
		return nil, err
	}
	if err := statusError(values); err != nil {
		return nil, err
	}
	return l.challenge(email, purpose, code, now, values)
}

func (l *RedisLedger) Resend(ctx context.Context, email string, purpose domain.Purpose) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "resend", err) }()

	code, err := l.opts.newCode()
	if err != nil {
		return nil, err
	}

	now := l.opts.now()
	values, err := l.run(ctx, redisResendScript, email, purpose,
		now.UnixMilli(),
		l.opts.policy.Cooldown.Milliseconds(),
		l.opts.policy.TTL(purpose).Milliseconds(),
		code,
	)
	if err != nil {
		return nil, err
	}
	if err := statusError(values); err != nil {
		return nil, err
	}
	return l.challenge(email, purpose, code, now, values)
}

func (l *RedisLedger) Consume(ctx context.Context, email string, purpose domain.Purpose, code string) (ch *domain.Challenge, err error) {
	defer func() { observe(purpose, "consume", err) }()

	values, err := l.run(ctx, redisConsumeScript, email, purpose,
		l.opts.now().UnixMilli(),
		l.opts.policy.TTL(purpose).Milliseconds(),
		code,
	)
	if err != nil {
		return nil, err
	}
	if err := statusError(values); err != nil {
		return nil, err
	}
	if len(values) < 4 {
		return nil, fmt.Errorf("unexpected redis consume result")
	}
	issuedMS, err := strconv.ParseInt(asString(values[3]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}
	return l.challenge(email, purpose, asString(values[2]), time.UnixMilli(issuedMS), values)
}

func (l *RedisLedger) Discard(ctx context.Context, email string, purpose domain.Purpose) error {
	if err := l.client.Del(ctx, l.redisKey(email, purpose)).Err(); err != nil {
		return fmt.Errorf("discard otp: %w", err)
	}
	return nil
}

// Ping reports whether the backing Redis is reachable.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *RedisLedger) run(ctx context.Context, script *redis.Script, email string, purpose domain.Purpose, args ...any) ([]any, error) {
	if l.client == nil {
		return nil, errors.New("otp: redis client is nil")
	}
	raw, err := script.Run(ctx, l.client, []string{l.redisKey(email, purpose)}, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("otp script: %w", err)
	}
	values, ok := raw.([]any)
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("unexpected redis result type %T", raw)
	}
	return values, nil
}

// challenge builds the result; values[1] carries the staged profile JSON.
func (l *RedisLedger) challenge(email string, purpose domain.Purpose, code string, issuedAt time.Time, values []any) (*domain.Challenge, error) {
	ch := &domain.Challenge{
		Email:    domain.NormalizeEmail(email),
		Purpose:  purpose,
		Code:     code,
		IssuedAt: issuedAt,
	}
	if len(values) > 1 {
		if raw := asString(values[1]); raw != "" {
			var staged domain.StagedProfile
			if err := json.Unmarshal([]byte(raw), &staged); err != nil {
				return nil, fmt.Errorf("decode staged profile: %w", err)
			}
			ch.Staged = &staged
		}
	}
	return ch, nil
}

func statusError(values []any) error {
	switch status := asString(values[0]); status {
	case "ok":
		return nil
	case "throttled":
		return domain.ErrThrottled
	case "not_found":
		return domain.ErrChallengeNotFound
	case "expired":
		return domain.ErrChallengeExpired
	case "mismatch":
		return domain.ErrCodeMismatch
	default:
		return fmt.Errorf("unknown otp script status %q", status)
	}
}

func asString(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	default:
		return fmt.Sprint(v)
	}
}

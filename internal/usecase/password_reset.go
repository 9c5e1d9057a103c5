package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/otp"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

// PasswordResetUsecase keeps the reset OTP on the user record rather than in
// the ledger, so a pending reset survives restarts.
type PasswordResetUsecase struct {
	users   repository.UserRepository
	mail    notifier
	policy  otp.Policy
	newCode otp.CodeGenerator
	now     func() time.Time
	logger  *slog.Logger
}

func NewPasswordResetUsecase(users repository.UserRepository, sender email.Sender, policy otp.Policy, logger *slog.Logger) *PasswordResetUsecase {
	logger = logger.With("component", "password_reset")
	return &PasswordResetUsecase{
		users:   users,
		mail:    notifier{sender: sender, logger: logger},
		policy:  policy,
		newCode: otp.GenerateCode,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock overrides time.Now.
func (u *PasswordResetUsecase) SetClock(now func() time.Time) {
	u.now = now
}

// ForgotPassword attaches a fresh reset code to the user and mails it.
func (u *PasswordResetUsecase) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	ttl := u.policy.TTL(domain.PurposePasswordReset)
	now := u.now()
	if user.ResetPasswordExpires != nil {
		issuedAt := user.ResetPasswordExpires.Add(-ttl)
		if now.Sub(issuedAt) < u.policy.Cooldown {
			return domain.ErrThrottled
		}
	}

	code, err := u.newCode()
	if err != nil {
		return err
	}
	expires := now.Add(ttl)
	user.ResetPasswordOTP = &code
	user.ResetPasswordExpires = &expires
	if err := u.users.Save(ctx, user); err != nil {
		return fmt.Errorf("save reset otp: %w", err)
	}

	if err := u.mail.required(ctx, user.Email, email.PasswordResetOTP(code, ttl)); err != nil {
		user.ClearResetOTP()
		if cErr := u.users.Save(ctx, user); cErr != nil {
			u.logger.ErrorContext(ctx, "clear undelivered reset otp", "user_id", user.ID, "error", cErr)
		}
		return err
	}
	return nil
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

// ResetPassword checks the code, then writes the new password and clears the
// reset fields with a conditional update, so a code is accepted at most once
// even under concurrent requests.
func (u *PasswordResetUsecase) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(in.Email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	stored := ""
	if user.ResetPasswordOTP != nil {
		stored = strings.TrimSpace(*user.ResetPasswordOTP)
	}
	entered := strings.TrimSpace(in.Code)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(entered)) != 1 {
		return domain.ErrCodeMismatch
	}
	if user.ResetPasswordExpires == nil || u.now().After(*user.ResetPasswordExpires) {
		return domain.ErrChallengeExpired
	}

	if err := u.users.ConsumeResetOTP(ctx, user.ID, stored, in.NewPassword, u.now()); err != nil {
		if errors.Is(err, domain.ErrCodeMismatch) {
			return err
		}
		return fmt.Errorf("save new password: %w", err)
	}

	u.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	u.mail.bestEffort(ctx, user.Email, email.PasswordResetDone(user.FirstName))
	return nil
}

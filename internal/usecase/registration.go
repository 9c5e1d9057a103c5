package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/otp"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

type RegistrationUsecase struct {
	users  repository.UserRepository
	ledger otp.Ledger
	mail   notifier
	policy otp.Policy
	logger *slog.Logger
}

func NewRegistrationUsecase(users repository.UserRepository, ledger otp.Ledger, sender email.Sender, policy otp.Policy, logger *slog.Logger) *RegistrationUsecase {
	logger = logger.With("component", "registration")
	return &RegistrationUsecase{
		users:  users,
		ledger: ledger,
		mail:   notifier{sender: sender, logger: logger},
		policy: policy,
		logger: logger,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// RequestRegistration stages the profile behind a new OTP and mails the code.
// The code is never returned to the caller.
func (u *RegistrationUsecase) RequestRegistration(ctx context.Context, in RegisterInput) error {
	addr := domain.NormalizeEmail(in.Email)

	existing, err := u.users.FindByEmail(ctx, addr)
	switch {
	case err == nil && existing.IsVerified:
		return domain.ErrDuplicateEmail
	case err != nil && !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("find user: %w", err)
	}

	ch, err := u.ledger.Issue(ctx, addr, domain.PurposeRegistration, &domain.StagedProfile{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  in.Password,
	})
	if err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}

	msg := email.RegistrationOTP(ch.Code, u.policy.TTL(domain.PurposeRegistration))
	if err := u.mail.required(ctx, addr, msg); err != nil {
		// the user never got this code, so it must not hold the cooldown
		if dErr := u.ledger.Discard(ctx, addr, domain.PurposeRegistration); dErr != nil {
			u.logger.ErrorContext(ctx, "discard undelivered otp", "error", dErr)
		}
		return err
	}
	return nil
}

// ResendRegistrationOTP replaces the pending code and mails the new one.
// When the mail fails the challenge is dropped, as in RequestRegistration:
// the previous code is already void, so the user starts over without waiting
// out the cooldown.
func (u *RegistrationUsecase) ResendRegistrationOTP(ctx context.Context, emailAddr string) error {
	addr := domain.NormalizeEmail(emailAddr)

	ch, err := u.ledger.Resend(ctx, addr, domain.PurposeRegistration)
	if err != nil {
		return fmt.Errorf("resend otp: %w", err)
	}

	msg := email.RegistrationOTPResent(ch.Code, u.policy.TTL(domain.PurposeRegistration))
	if err := u.mail.required(ctx, addr, msg); err != nil {
		if dErr := u.ledger.Discard(ctx, addr, domain.PurposeRegistration); dErr != nil {
			u.logger.ErrorContext(ctx, "discard undelivered otp", "error", dErr)
		}
		return err
	}
	return nil
}

// VerifyAndCreate consumes the OTP and persists the staged profile as a
// verified user. Nothing is created unless the code matches.
func (u *RegistrationUsecase) VerifyAndCreate(ctx context.Context, emailAddr, code string) (*domain.User, error) {
	addr := domain.NormalizeEmail(emailAddr)

	ch, err := u.ledger.Consume(ctx, addr, domain.PurposeRegistration, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if ch.Staged == nil {
		return nil, fmt.Errorf("verify otp: %w", domain.ErrChallengeNotFound)
	}

	user, err := u.users.Create(ctx, domain.NewUser{
		Email:      addr,
		Password:   ch.Staged.Password,
		FirstName:  ch.Staged.FirstName,
		LastName:   ch.Staged.LastName,
		IsVerified: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	u.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	u.mail.bestEffort(ctx, user.Email, email.Welcome(user.FirstName))
	return user, nil
}

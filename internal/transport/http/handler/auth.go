package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/usecase"
	"github.com/gin-gonic/gin"
)

// The interfaces below are the usecase subsets the handler needs. They are
// defined here (point of use) so tests can inject fakes.

type registrar interface {
	RequestRegistration(ctx context.Context, in usecase.RegisterInput) error
	ResendRegistrationOTP(ctx context.Context, email string) error
	VerifyAndCreate(ctx context.Context, email, code string) (*domain.User, error)
}

type passwordResetter interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error
}

type authenticator interface {
	Login(ctx context.Context, in usecase.LoginInput) (string, error)
	CheckEmail(ctx context.Context, email string) (bool, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

type AuthHandler struct {
	registration registrar
	reset        passwordResetter
	auth         authenticator
	logger       *slog.Logger
}

func NewAuthHandler(registration registrar, reset passwordResetter, auth authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		reset:        reset,
		auth:         auth,
		logger:       logger.With("component", "auth_handler"),
	}
}

type sendOTPRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName"  binding:"required"`
	Email     string `json:"email"     binding:"required,email"`
	Password  string `json:"password"  binding:"required,min=8"`
}

// POST /api/auth/send-otp
// The code is mailed, never returned.
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.registration.RequestRegistration(c.Request.Context(), usecase.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "send otp", err)
		return
	}
	ok(c, http.StatusOK, "OTP sent to email", nil)
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required"`
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	if _, err := h.registration.VerifyAndCreate(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondError(c, h.logger, "verify otp", err)
		return
	}
	ok(c, http.StatusCreated, "User registered successfully", nil)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /api/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.registration.ResendRegistrationOTP(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrChallengeNotFound) {
			fail(c, http.StatusNotFound, errNoPendingRequest)
			return
		}
		respondError(c, h.logger, "resend otp", err)
		return
	}
	ok(c, http.StatusOK, "New OTP sent to email", nil)
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/auth/login
// Returns {"token": "<jwt>"} on success.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}
	ok(c, http.StatusOK, "Login successful", gin.H{"token": token})
}

// POST /api/auth/check-email
func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	exists, err := h.auth.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, h.logger, "check email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.reset.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "forgot password", err)
		return
	}
	ok(c, http.StatusOK, "OTP sent to your email", nil)
}

type resetPasswordRequest struct {
	Email       string `json:"email"       binding:"required,email"`
	OTP         string `json:"otp"         binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.reset.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.OTP,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}
	ok(c, http.StatusOK, "Password reset successful", nil)
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	IsVerified bool      `json:"isVerified"`
	Google     bool      `json:"googleLinked"`
	GitHub     bool      `json:"githubLinked"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, "current user", err)
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsVerified: user.IsVerified,
		Google:     user.GoogleID != nil,
		GitHub:     user.GitHubID != nil,
		CreatedAt:  user.CreatedAt,
	})
}

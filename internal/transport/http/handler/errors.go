package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Validation messages name fields by their json key.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

const (
	errInternalServer   = "Internal server error"
	errInvalidBody      = "Invalid request body"
	errOTPSendFailed    = "Could not send email, please try again"
	errNoPendingRequest = "No OTP request found for this email"
)

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrThrottled, http.StatusTooManyRequests, "OTP already sent, please wait before retrying"},
	{domain.ErrChallengeNotFound, http.StatusBadRequest, "OTP expired or not found"},
	{domain.ErrChallengeExpired, http.StatusBadRequest, "OTP expired"},
	{domain.ErrCodeMismatch, http.StatusBadRequest, "Invalid OTP"},
	{domain.ErrDuplicateEmail, http.StatusConflict, "User already exists with this email"},
	{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{domain.ErrEmailNotVerified, http.StatusForbidden, "Please verify your email first"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	{domain.ErrNotificationFailed, http.StatusBadGateway, errOTPSendFailed},
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func ok(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondError maps domain errors to a status and logs anything else.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.status >= http.StatusInternalServerError {
				logger.ErrorContext(c.Request.Context(), op, "error", err)
			}
			fail(c, e.status, e.message)
			return
		}
	}
	logger.ErrorContext(c.Request.Context(), op, "error", err)
	fail(c, http.StatusInternalServerError, errInternalServer)
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errInvalidBody
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/account-service/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-service/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, authHandler *handler.AuthHandler, oauthHandler *handler.OAuthHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		Filters: []sloggin.Filter{
			sloggin.IgnorePath("/favicon.ico"),
			// callback queries carry the one-time code and state; the handler logs outcomes
			sloggin.IgnorePathSuffix("/callback"),
		},
	}))
	r.Use(middleware.Metrics())

	api := r.Group("/api/auth")
	api.POST("/send-otp", authHandler.SendOTP)
	api.POST("/register", authHandler.SendOTP)
	api.POST("/verify-otp", authHandler.VerifyOTP)
	api.POST("/resend-otp", authHandler.ResendOTP)
	api.POST("/login", authHandler.Login)
	api.POST("/check-email", authHandler.CheckEmail)
	api.POST("/forgot-password", authHandler.ForgotPassword)
	api.POST("/reset-password", authHandler.ResetPassword)

	api.GET("/me", middleware.Auth(jwtKey), authHandler.Me)

	api.GET("/:provider", oauthHandler.Start)
	api.GET("/:provider/callback", oauthHandler.Callback)

	return r
}

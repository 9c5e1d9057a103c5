package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/account-service/config"
	"github.com/ErlanBelekov/account-service/internal/email"
	"github.com/ErlanBelekov/account-service/internal/health"
	"github.com/ErlanBelekov/account-service/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/account-service/internal/log"
	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/ErlanBelekov/account-service/internal/oauth"
	"github.com/ErlanBelekov/account-service/internal/otp"
	"github.com/ErlanBelekov/account-service/internal/password"
	"github.com/ErlanBelekov/account-service/internal/token"
	httptransport "github.com/ErlanBelekov/account-service/internal/transport/http"
	"github.com/ErlanBelekov/account-service/internal/transport/http/handler"
	"github.com/ErlanBelekov/account-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	hasher := password.NewBcryptHasher(bcrypt.DefaultCost)
	userRepo := postgres.NewUserRepository(pool, hasher)
	deps := []health.Dependency{{Name: "postgres", Pinger: pool}}

	// OTP ledger
	policy := otp.Policy{
		Cooldown:         cfg.OTPCooldown,
		RegistrationTTL:  cfg.OTPRegistrationTTL,
		PasswordResetTTL: cfg.OTPResetTTL,
	}
	var ledger otp.Ledger
	switch cfg.OTPStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		redisLedger := otp.NewRedisLedger(rdb, "", otp.WithPolicy(policy))
		deps = append(deps, health.Dependency{Name: "redis", Pinger: redisLedger})
		ledger = redisLedger
	default:
		memLedger := otp.NewMemoryLedger(otp.WithPolicy(policy))
		sweeper, err := otp.NewSweeper(memLedger, cfg.OTPSweepSpec, logger)
		if err != nil {
			stop()
			log.Fatalf("otp sweeper: %v", err)
		}
		go sweeper.Start(ctx)
		ledger = memLedger
	}

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	issuer := token.NewHMACIssuer([]byte(cfg.JWTSecret))

	registration := usecase.NewRegistrationUsecase(userRepo, ledger, sender, policy, logger)
	reset := usecase.NewPasswordResetUsecase(userRepo, sender, policy, logger)
	auth := usecase.NewAuthUsecase(userRepo, hasher, issuer, sender, logger)
	identities := usecase.NewIdentityUsecase(userRepo, logger)

	providers, err := newProviders(ctx, cfg)
	if err != nil {
		stop()
		log.Fatalf("oauth: %v", err)
	}
	logger.Info("oauth providers configured", "providers", providers.Names())

	authHandler := handler.NewAuthHandler(registration, reset, auth, logger)
	oauthHandler := handler.NewOAuthHandler(providers, identities, auth, cfg.ClientURL, cfg.Env != "local", logger)

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, authHandler, oauthHandler, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port, "otp_store", cfg.OTPStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

// newProviders registers only the providers with configured credentials.
func newProviders(ctx context.Context, cfg *config.Config) (*oauth.Registry, error) {
	var list []oauth.Provider

	if cfg.GoogleEnabled() {
		discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		g, err := oauth.NewGoogle(discoverCtx, oauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, g)
	}

	if cfg.GitHubEnabled() {
		gh, err := oauth.NewGitHub(oauth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubCallbackURL,
		})
		if err != nil {
			return nil, err
		}
		list = append(list, gh)
	}

	return oauth.NewRegistry(list...), nil
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

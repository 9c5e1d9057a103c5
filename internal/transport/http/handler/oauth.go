package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/oauth"
	"github.com/gin-gonic/gin"
)

type providerLookup interface {
	Get(name string) (oauth.Provider, error)
}

type identityResolver interface {
	Resolve(ctx context.Context, p domain.OAuthProfile) (*domain.User, error)
}

type tokenIssuer interface {
	IssueToken(user *domain.User) (string, error)
}

type OAuthHandler struct {
	providers     providerLookup
	identities    identityResolver
	tokens        tokenIssuer
	clientURL     string
	secureCookies bool
	logger        *slog.Logger
}

func NewOAuthHandler(providers providerLookup, identities identityResolver, tokens tokenIssuer, clientURL string, secureCookies bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		providers:     providers,
		identities:    identities,
		tokens:        tokens,
		clientURL:     strings.TrimRight(clientURL, "/"),
		secureCookies: secureCookies,
		logger:        logger.With("component", "oauth_handler"),
	}
}

// GET /api/auth/:provider
func (h *OAuthHandler) Start(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		fail(c, http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	state, err := newState()
	if err != nil {
		respondError(c, h.logger, "oauth state", err)
		return
	}
	verifier := oauth.NewVerifier()

	setFlowCookie(c, stateCookieName, state, h.secureCookies)
	setFlowCookie(c, pkceCookieName, verifier, h.secureCookies)
	c.Redirect(http.StatusFound, p.AuthCodeURL(state, verifier))
}

// GET /api/auth/:provider/callback
// Redirects to the client with a session token, or to the client's login
// page with an error reason.
func (h *OAuthHandler) Callback(c *gin.Context) {
	name := c.Param("provider")
	p, err := h.providers.Get(name)
	if err != nil {
		fail(c, http.StatusNotFound, "Unknown OAuth provider")
		return
	}

	stateOK := validateState(c)
	verifier, _ := c.Cookie(pkceCookieName)
	clearFlowCookie(c, stateCookieName, h.secureCookies)
	clearFlowCookie(c, pkceCookieName, h.secureCookies)

	ctx := c.Request.Context()
	if !stateOK {
		h.logger.WarnContext(ctx, "oauth state mismatch", "provider", name)
		h.redirectFailure(c, "invalid_state")
		return
	}
	if reason := c.Query("error"); reason != "" {
		h.logger.WarnContext(ctx, "oauth provider returned error", "provider", name, "error", reason, "desc", c.Query("error_description"))
		h.redirectFailure(c, reason)
		return
	}
	code := c.Query("code")
	if code == "" || verifier == "" {
		h.redirectFailure(c, "missing_code")
		return
	}

	profile, err := p.Exchange(ctx, code, verifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "oauth exchange", "provider", name, "error", err)
		h.redirectFailure(c, "exchange_failed")
		return
	}

	user, err := h.identities.Resolve(ctx, *profile)
	if err != nil {
		h.logger.ErrorContext(ctx, "resolve identity", "provider", name, "error", err)
		h.redirectFailure(c, "resolution_failed")
		return
	}

	token, err := h.tokens.IssueToken(user)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue token", "user_id", user.ID, "error", err)
		h.redirectFailure(c, "token_failed")
		return
	}

	h.logger.InfoContext(ctx, "oauth login", "provider", name, "user_id", user.ID)
	c.Redirect(http.StatusFound, h.clientURL+"/oauth/callback?"+url.Values{"token": {token}}.Encode())
}

func (h *OAuthHandler) redirectFailure(c *gin.Context, reason string) {
	c.Redirect(http.StatusFound, h.clientURL+"/login?"+url.Values{"error": {reason}}.Encode())
}

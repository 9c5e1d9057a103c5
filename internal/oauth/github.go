package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const GitHubAPIBaseURL = "https://api.github.com"

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIBaseURL defaults to GitHubAPIBaseURL.
	APIBaseURL string
	// Endpoint defaults to github.Endpoint.
	Endpoint oauth2.Endpoint
}

// GitHub signs users in with OAuth 2 and reads the profile from the REST API.
type GitHub struct {
	oauthConfig *oauth2.Config
	apiBase     string
}

func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, errors.New("github oauth config missing required fields")
	}
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = github.Endpoint
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = GitHubAPIBaseURL
	}

	return &GitHub{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: base,
	}, nil
}

func (g *GitHub) Name() domain.Provider { return domain.ProviderGitHub }

func (g *GitHub) AuthCodeURL(state, verifier string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Exchange(ctx context.Context, code, verifier string) (*domain.OAuthProfile, error) {
	tok, err := g.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("github token exchange: %w", err)
	}
	client := g.oauthConfig.Client(ctx, tok)

	var user githubUser
	if err := g.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, errors.New("github user response missing id")
	}

	addr := user.Email
	if addr == "" {
		// the public profile hides the address; a missing emails scope leaves it empty
		var emails []githubEmail
		if err := g.getJSON(ctx, client, "/user/emails", &emails); err == nil {
			addr = primaryEmail(emails)
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &domain.OAuthProfile{
		Provider:    domain.ProviderGitHub,
		ProviderID:  strconv.FormatInt(user.ID, 10),
		Email:       addr,
		DisplayName: name,
	}, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github %s: %w", path, err)
	}
	return nil
}

func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

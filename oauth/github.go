package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/keelauth/keel"
)

const githubAPIBase = "https://api.github.com"

// GitHubConfig configures the GitHub provider. APIBaseURL and Endpoint exist
// so tests can point the provider at a local server.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	APIBaseURL   string
	Endpoint     oauth2.Endpoint
	HTTPClient   *http.Client
}

// GitHub authenticates through GitHub's OAuth flow. GitHub issues no ID
// token, so the identity comes from the REST API: /user first, then
// /user/emails when the profile hides the address.
type GitHub struct {
	oauth   *oauth2.Config
	apiBase string
	client  *http.Client
}

func NewGitHub(cfg GitHubConfig) (*GitHub, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("github oauth: client id and secret required")
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = githubAPIBase
	}

	return &GitHub{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		apiBase: apiBase,
		client:  cfg.HTTPClient,
	}, nil
}

func (g *GitHub) Name() string { return "github" }

// AuthCodeURL ignores the nonce: GitHub's flow has no ID token to carry it.
func (g *GitHub) AuthCodeURL(state, _ string) string {
	return g.oauth.AuthCodeURL(state)
}

func (g *GitHub) Identity(ctx context.Context, code, _ string) (keel.OAuthIdentity, error) {
	if g.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return keel.OAuthIdentity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	client := g.oauth.Client(ctx, token)

	var profile struct {
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(ctx, client, "/user", &profile); err != nil {
		return keel.OAuthIdentity{}, err
	}

	email := profile.Email
	verified := false
	if email == "" {
		// Profiles with a private email expose it only through the emails
		// endpoint; prefer the primary address.
		email, verified, err = g.primaryEmail(ctx, client)
		if err != nil {
			return keel.OAuthIdentity{}, err
		}
	}
	if email == "" {
		return keel.OAuthIdentity{}, keel.ErrOAuthEmailMissing
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	return keel.OAuthIdentity{
		Provider:      g.Name(),
		Email:         email,
		FullName:      name,
		AvatarURL:     profile.AvatarURL,
		EmailVerified: verified,
	}, nil
}

func (g *GitHub) primaryEmail(ctx context.Context, client *http.Client) (string, bool, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return "", false, err
	}
	if len(emails) == 0 {
		return "", false, nil
	}

	// The primary flag decides even when the address is unverified; its
	// verified state travels with it.
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	return emails[0].Email, emails[0].Verified, nil
}

func (g *GitHub) getJSON(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrExchangeFailed, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrExchangeFailed, path, err)
	}
	return nil
}

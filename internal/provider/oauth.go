package provider

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grepdeck/authgate/internal/domain"
)

// userinfoFlavor selects how a provider's profile payload maps onto an
// identity. Most providers speak standard OIDC claims; the code forges
// (GitHub, GitLab) have their own shapes.
type userinfoFlavor int

const (
	flavorOIDC userinfoFlavor = iota
	flavorGitHub
	flavorGitLab
)

// OAuthClient drives an OAuth 2.0 authorization-code flow with PKCE against
// a single provider. Endpoints are fixed at construction; the flows differ
// only in URLs, scope and profile shape.
type OAuthClient struct {
	id   string
	name string
	kind domain.ProviderKind

	clientID     string
	clientSecret string
	redirectURI  string

	authorizeURL string
	tokenURL     string
	userinfoURL  string
	emailsURL    string // GitHub only; profile email may be private
	scope        string
	flavor       userinfoFlavor

	httpClient *http.Client
}

func (c *OAuthClient) ID() string                { return c.id }
func (c *OAuthClient) Name() string              { return c.name }
func (c *OAuthClient) Kind() domain.ProviderKind { return c.kind }

func newOAuthClient(id, name string, kind domain.ProviderKind, clientID, clientSecret, externalURL string) *OAuthClient {
	return &OAuthClient{
		id:           id,
		name:         name,
		kind:         kind,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  strings.TrimSuffix(externalURL, "/") + "/auth/callback/" + id,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewGitHub builds a GitHub OAuth provider. baseURL overrides the public
// github.com endpoints for GitHub Enterprise installs.
func NewGitHub(clientID, clientSecret, baseURL, externalURL string) *OAuthClient {
	c := newOAuthClient("github", "GitHub", domain.ProviderGitHub, clientID, clientSecret, externalURL)
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" || base == "https://github.com" {
		c.authorizeURL = "https://github.com/login/oauth/authorize"
		c.tokenURL = "https://github.com/login/oauth/access_token"
		c.userinfoURL = "https://api.github.com/user"
		c.emailsURL = "https://api.github.com/user/emails"
	} else {
		c.authorizeURL = base + "/login/oauth/authorize"
		c.tokenURL = base + "/login/oauth/access_token"
		c.userinfoURL = base + "/api/v3/user"
		c.emailsURL = base + "/api/v3/user/emails"
	}
	c.scope = "read:user user:email"
	c.flavor = flavorGitHub
	return c
}

func NewGitLab(clientID, clientSecret, baseURL, externalURL string) *OAuthClient {
	c := newOAuthClient("gitlab", "GitLab", domain.ProviderGitLab, clientID, clientSecret, externalURL)
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = "https://gitlab.com"
	}
	c.authorizeURL = base + "/oauth/authorize"
	c.tokenURL = base + "/oauth/token"
	c.userinfoURL = base + "/api/v4/user"
	c.scope = "read_user"
	c.flavor = flavorGitLab
	return c
}

func NewGoogle(clientID, clientSecret, externalURL string) *OAuthClient {
	c := newOAuthClient("google", "Google", domain.ProviderGoogle, clientID, clientSecret, externalURL)
	c.authorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	c.tokenURL = "https://oauth2.googleapis.com/token"
	c.userinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	c.scope = "openid email profile"
	c.flavor = flavorOIDC
	return c
}

func NewOkta(clientID, clientSecret, issuer, externalURL string) *OAuthClient {
	c := newOAuthClient("okta", "Okta", domain.ProviderOkta, clientID, clientSecret, externalURL)
	base := strings.TrimSuffix(issuer, "/")
	c.authorizeURL = base + "/v1/authorize"
	c.tokenURL = base + "/v1/token"
	c.userinfoURL = base + "/v1/userinfo"
	c.scope = "openid email profile"
	c.flavor = flavorOIDC
	return c
}

func NewKeycloak(clientID, clientSecret, issuer, externalURL string) *OAuthClient {
	c := newOAuthClient("keycloak", "Keycloak", domain.ProviderKeycloak, clientID, clientSecret, externalURL)
	base := strings.TrimSuffix(issuer, "/")
	c.authorizeURL = base + "/protocol/openid-connect/auth"
	c.tokenURL = base + "/protocol/openid-connect/token"
	c.userinfoURL = base + "/protocol/openid-connect/userinfo"
	c.scope = "openid email profile"
	c.flavor = flavorOIDC
	return c
}

// NewEntraID builds a Microsoft Entra ID provider from its v2.0 issuer URL,
// e.g. https://login.microsoftonline.com/{tenant}/v2.0.
func NewEntraID(clientID, clientSecret, issuer, externalURL string) *OAuthClient {
	c := newOAuthClient("microsoft-entra-id", "Microsoft Entra ID", domain.ProviderEntraID, clientID, clientSecret, externalURL)
	base := strings.TrimSuffix(strings.TrimSuffix(issuer, "/"), "/v2.0")
	c.authorizeURL = base + "/oauth2/v2.0/authorize"
	c.tokenURL = base + "/oauth2/v2.0/token"
	c.userinfoURL = "https://graph.microsoft.com/oidc/userinfo"
	c.scope = "openid email profile"
	c.flavor = flavorOIDC
	return c
}

// GeneratePKCE produces a code_verifier and its S256 code_challenge.
func GeneratePKCE() (verifier, challenge string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	verifier = base64.RawURLEncoding.EncodeToString(b)

	h := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(h[:])

	return verifier, challenge, nil
}

// AuthURL returns the provider's authorization URL for this login attempt.
func (c *OAuthClient) AuthURL(state, codeChallenge string) string {
	params := url.Values{
		"client_id":             {c.clientID},
		"redirect_uri":          {c.redirectURI},
		"response_type":         {"code"},
		"scope":                 {c.scope},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}
	return c.authorizeURL + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token,omitempty"`
}

// Exchange trades the callback code for tokens, fetches the profile and maps
// it onto a normalized identity.
func (c *OAuthClient) Exchange(ctx context.Context, code, codeVerifier string) (domain.Identity, error) {
	token, err := c.exchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(err)
	}

	ident, err := c.fetchIdentity(ctx, token.AccessToken)
	if err != nil {
		return domain.Identity{}, err
	}
	return ident, nil
}

func (c *OAuthClient) exchangeCode(ctx context.Context, code, codeVerifier string) (*tokenResponse, error) {
	data := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"code_verifier": {codeVerifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// GitHub answers form-encoded unless asked for JSON.
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed: %s", string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no access token")
	}

	return &token, nil
}

func (c *OAuthClient) fetchIdentity(ctx context.Context, accessToken string) (domain.Identity, error) {
	body, err := c.getJSON(ctx, c.userinfoURL, accessToken)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(err)
	}

	switch c.flavor {
	case flavorGitHub:
		return c.mapGitHub(ctx, body, accessToken)
	case flavorGitLab:
		return c.mapGitLab(body)
	default:
		return c.mapOIDC(body)
	}
}

func (c *OAuthClient) getJSON(ctx context.Context, rawURL, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: %s", string(body))
	}
	return body, nil
}

func (c *OAuthClient) mapOIDC(body []byte) (domain.Identity, error) {
	var info struct {
		Sub               string   `json:"sub"`
		Email             string   `json:"email"`
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		Picture           string   `json:"picture"`
		Groups            []string `json:"groups"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(fmt.Errorf("failed to parse userinfo: %w", err))
	}

	name := info.Name
	if name == "" {
		name = info.PreferredUsername
	}
	ident, err := domain.NewIdentity(info.Sub, info.Email, name, info.Groups, c.kind)
	if err != nil {
		return domain.Identity{}, err
	}
	ident.Image = info.Picture
	return ident, nil
}

func (c *OAuthClient) mapGitHub(ctx context.Context, body []byte, accessToken string) (domain.Identity, error) {
	var info struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(fmt.Errorf("failed to parse userinfo: %w", err))
	}

	email := info.Email
	if email == "" {
		// The profile email is hidden for many accounts; the emails endpoint
		// needs the user:email scope requested above.
		primary, err := c.fetchGitHubPrimaryEmail(ctx, accessToken)
		if err != nil {
			return domain.Identity{}, err
		}
		email = primary
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}
	ident, err := domain.NewIdentity(strconv.FormatInt(info.ID, 10), email, name, nil, c.kind)
	if err != nil {
		return domain.Identity{}, err
	}
	ident.Image = info.AvatarURL
	return ident, nil
}

func (c *OAuthClient) fetchGitHubPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	body, err := c.getJSON(ctx, c.emailsURL, accessToken)
	if err != nil {
		return "", domain.ErrInvalidToken(err)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", domain.ErrInvalidToken(fmt.Errorf("failed to parse emails: %w", err))
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", domain.ErrMissingEmail()
}

func (c *OAuthClient) mapGitLab(body []byte) (domain.Identity, error) {
	var info struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(fmt.Errorf("failed to parse userinfo: %w", err))
	}

	name := info.Name
	if name == "" {
		name = info.Username
	}
	ident, err := domain.NewIdentity(strconv.FormatInt(info.ID, 10), info.Email, name, nil, c.kind)
	if err != nil {
		return domain.Identity{}, err
	}
	ident.Image = info.AvatarURL
	return ident, nil
}

package provider

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grepdeck/authgate/internal/domain"
)

// IAPAssertionHeader carries the signed identity token that Google Cloud IAP
// attaches to every proxied request.
const IAPAssertionHeader = "X-Goog-IAP-JWT-Assertion"

const iapIssuer = "https://cloud.google.com/iap"

const iapKeyTTL = time.Hour

// IAP verifies Google Cloud Identity-Aware Proxy assertions. Signing keys are
// fetched from Google's published key set and cached; an unknown kid forces a
// refresh before the assertion is rejected.
type IAP struct {
	audience   string
	keyURL     string
	httpClient *http.Client

	mu        sync.RWMutex
	keys      map[string]*ecdsa.PublicKey
	fetchedAt time.Time
}

func NewIAP(audience, keyURL string) *IAP {
	return &IAP{
		audience: audience,
		keyURL:   keyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *IAP) ID() string                { return "gcp-iap" }
func (p *IAP) Name() string              { return "Google Cloud IAP" }
func (p *IAP) Kind() domain.ProviderKind { return domain.ProviderIAP }

type iapClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// Verify checks the assertion header, if present, against Google's signing
// keys, the expected audience and the IAP issuer.
func (p *IAP) Verify(ctx context.Context, r *http.Request) (domain.Identity, error) {
	assertion := r.Header.Get(IAPAssertionHeader)
	if assertion == "" {
		return domain.Identity{}, domain.ErrInvalidToken(fmt.Errorf("missing %s header", IAPAssertionHeader))
	}

	claims := &iapClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("assertion has no kid")
		}
		return p.signingKey(ctx, kid)
	},
		jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithAudience(p.audience),
		jwt.WithIssuer(iapIssuer),
	)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken(err)
	}

	// Assertions from a plain IAP setup often omit the profile claims;
	// NewIdentity falls back to the email for a missing name.
	ident, err := domain.NewIdentity(claims.Subject, claims.Email, claims.Name, nil, domain.ProviderIAP)
	if err != nil {
		return domain.Identity{}, err
	}
	ident.Image = claims.Picture
	return ident, nil
}

// signingKey returns the cached key for kid, refreshing the key set when the
// kid is unknown or the cache has gone stale.
func (p *IAP) signingKey(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	p.mu.RLock()
	key, ok := p.keys[kid]
	fresh := time.Since(p.fetchedAt) < iapKeyTTL
	p.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := p.refreshKeys(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	key, ok = p.keys[kid]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (p *IAP) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.keyURL, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("key fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read key response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key fetch failed: %s", string(body))
	}

	// Google publishes the set as a flat kid -> PEM map.
	var pems map[string]string
	if err := json.Unmarshal(body, &pems); err != nil {
		return fmt.Errorf("failed to parse key set: %w", err)
	}

	keys := make(map[string]*ecdsa.PublicKey, len(pems))
	for kid, pem := range pems {
		key, err := jwt.ParseECPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("bad key %q in key set: %w", kid, err)
		}
		keys[kid] = key
	}

	p.mu.Lock()
	p.keys = keys
	p.fetchedAt = time.Now()
	p.mu.Unlock()
	return nil
}

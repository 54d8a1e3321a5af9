package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Tenancy modes.
const (
	TenancySingle = "single"
	TenancyMulti  = "multi"
)

// Default proxy header names (oauth2-proxy conventions).
const (
	DefaultProxyUserHeader   = "X-Forwarded-User"
	DefaultProxyEmailHeader  = "X-Forwarded-Email"
	DefaultProxyNameHeader   = "X-Forwarded-Preferred-Username"
	DefaultProxyGroupsHeader = "X-Forwarded-Groups"
)

// DefaultIAPKeyURL is where Google publishes the IAP signing keys.
const DefaultIAPKeyURL = "https://www.gstatic.com/iap/verify/public_key"

// Config is the process-wide configuration. Loaded once at startup and
// immutable afterwards; components receive it (or slices of it) explicitly.
type Config struct {
	// App
	Env string // dev / staging / prod

	// HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Session artifact
	SessionSecret string `validate:"required"`
	SessionIssuer string
	SessionTTL    time.Duration

	// Tenancy
	TenancyMode string `validate:"oneof=single multi"`
	OrgDomain   string `validate:"required"`
	OrgID       int64

	// Infrastructure
	DBAddr         string `validate:"required"`
	DBDebug        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RabbitURL      string
	RabbitExchange string

	// Sign-in flow
	ExternalURL string `validate:"required,url"` // public base URL, used to build OAuth callbacks
	StateTTL    time.Duration

	// Rate limiting on the sign-in endpoints; 0 disables.
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Header-trust channel. The flag is useless unless the reverse proxy is
	// the sole network ingress; that precondition cannot be verified here.
	TrustProxyHeaders bool
	ProxyUserHeader   string `validate:"required_if=TrustProxyHeaders true"`
	ProxyEmailHeader  string `validate:"required_if=TrustProxyHeaders true"`
	ProxyNameHeader   string
	ProxyGroupsHeader string

	// Direct OAuth providers. A provider is enabled iff all of its required
	// fields are non-empty; partial configuration silently disables it.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubBaseURL      string // optional, for GitHub Enterprise

	GitLabClientID     string
	GitLabClientSecret string
	GitLabBaseURL      string

	GoogleClientID     string
	GoogleClientSecret string

	OktaClientID     string
	OktaClientSecret string
	OktaIssuer       string

	KeycloakClientID     string
	KeycloakClientSecret string
	KeycloakIssuer       string

	EntraIDClientID     string
	EntraIDClientSecret string
	EntraIDIssuer       string

	// Signed-assertion channel (GCP IAP).
	IAPEnabled  bool
	IAPAudience string `validate:"required_if=IAPEnabled true"`
	IAPKeyURL   string
}

func Load() (*Config, error) {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "dev"),
		HTTPAddr: getEnv("HTTP_ADDR", ":3000"),
	}

	// required values
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("missing required env var: SESSION_SECRET")
	}
	cfg.DBAddr = os.Getenv("DB_ADDR")
	if cfg.DBAddr == "" {
		return nil, fmt.Errorf("missing required env var: DB_ADDR")
	}
	cfg.ExternalURL = getEnv("EXTERNAL_URL", "http://localhost:3000")

	cfg.SessionIssuer = getEnv("SESSION_ISSUER", "authgate")
	ttl, err := getDuration("SESSION_TTL", 12*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SessionTTL = ttl

	stl, err := getDuration("OAUTH_STATE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.StateTTL = stl

	// Tenancy. Single-tenant deployments pin the well-known org.
	cfg.TenancyMode = getEnv("TENANCY_MODE", TenancySingle)
	cfg.OrgDomain = getEnv("ORG_DOMAIN", "~")
	orgID, err := getInt64("ORG_ID", 1)
	if err != nil {
		return nil, err
	}
	cfg.OrgID = orgID

	// Optional infrastructure; bootstrap degrades to in-memory fallbacks.
	cfg.DBDebug = getBool("DB_DEBUG", false)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	redisDB, err := getInt64("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = int(redisDB)
	rl, err := getInt64("LOGIN_RATE_LIMIT", 30)
	if err != nil {
		return nil, err
	}
	cfg.LoginRateLimit = int(rl)
	rw, err := getDuration("LOGIN_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.LoginRateWindow = rw

	cfg.RabbitURL = os.Getenv("RABBIT_URL")
	cfg.RabbitExchange = getEnv("RABBIT_EXCHANGE", "authgate.audit")

	// Header trust
	cfg.TrustProxyHeaders = getBool("TRUST_PROXY_HEADERS", false)
	cfg.ProxyUserHeader = getEnv("PROXY_USER_HEADER", DefaultProxyUserHeader)
	cfg.ProxyEmailHeader = getEnv("PROXY_EMAIL_HEADER", DefaultProxyEmailHeader)
	cfg.ProxyNameHeader = getEnv("PROXY_NAME_HEADER", DefaultProxyNameHeader)
	cfg.ProxyGroupsHeader = getEnv("PROXY_GROUPS_HEADER", DefaultProxyGroupsHeader)

	// Direct OAuth providers
	cfg.GitHubClientID = os.Getenv("AUTH_GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("AUTH_GITHUB_CLIENT_SECRET")
	cfg.GitHubBaseURL = os.Getenv("AUTH_GITHUB_BASE_URL")

	cfg.GitLabClientID = os.Getenv("AUTH_GITLAB_CLIENT_ID")
	cfg.GitLabClientSecret = os.Getenv("AUTH_GITLAB_CLIENT_SECRET")
	cfg.GitLabBaseURL = getEnv("AUTH_GITLAB_BASE_URL", "https://gitlab.com")

	cfg.GoogleClientID = os.Getenv("AUTH_GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("AUTH_GOOGLE_CLIENT_SECRET")

	cfg.OktaClientID = os.Getenv("AUTH_OKTA_CLIENT_ID")
	cfg.OktaClientSecret = os.Getenv("AUTH_OKTA_CLIENT_SECRET")
	cfg.OktaIssuer = os.Getenv("AUTH_OKTA_ISSUER")

	cfg.KeycloakClientID = os.Getenv("AUTH_KEYCLOAK_CLIENT_ID")
	cfg.KeycloakClientSecret = os.Getenv("AUTH_KEYCLOAK_CLIENT_SECRET")
	cfg.KeycloakIssuer = os.Getenv("AUTH_KEYCLOAK_ISSUER")

	cfg.EntraIDClientID = os.Getenv("AUTH_ENTRA_ID_CLIENT_ID")
	cfg.EntraIDClientSecret = os.Getenv("AUTH_ENTRA_ID_CLIENT_SECRET")
	cfg.EntraIDIssuer = os.Getenv("AUTH_ENTRA_ID_ISSUER")

	cfg.IAPEnabled = getBool("AUTH_GCP_IAP_ENABLED", false)
	cfg.IAPAudience = os.Getenv("AUTH_GCP_IAP_AUDIENCE")
	cfg.IAPKeyURL = getEnv("AUTH_GCP_IAP_KEY_URL", DefaultIAPKeyURL)

	hrt, err := getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPReadTimeout = hrt

	hwt, err := getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.HTTPWriteTimeout = hwt

	hit, err := getDuration("HTTP_IDLE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.HTTPIdleTimeout = hit

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the struct-level rules. Separate from Load so tests can
// exercise it on hand-built configs.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SingleTenant reports whether the deployment runs in single-tenant mode.
func (c *Config) SingleTenant() bool {
	return c.TenancyMode == TenancySingle
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

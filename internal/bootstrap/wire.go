package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/audit"
	"github.com/grepdeck/authgate/internal/config"
	"github.com/grepdeck/authgate/internal/infrastructure/db/postgres"
	"github.com/grepdeck/authgate/internal/infrastructure/memory"
	"github.com/grepdeck/authgate/internal/infrastructure/messaging/rabbitmq"
	"github.com/grepdeck/authgate/internal/infrastructure/redis"
	"github.com/grepdeck/authgate/internal/infrastructure/security"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/provider"
	"github.com/grepdeck/authgate/internal/transport/http/handlers"
	"github.com/grepdeck/authgate/internal/transport/http/middleware"
	"github.com/grepdeck/authgate/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing.
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB func(addr string, debug bool) (*sql.DB, error)

	NewRedis func(addr, password string, db int) RedisClient

	NewAuditSink func(url, exchange string) (audit.Sink, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type RedisClient interface {
	Ping(ctx context.Context) error
	Close() error
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 1) db
	db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
	if err != nil {
		return nil, nil, err
	}

	cleanupFns := []func(){
		func() { _ = db.Close() },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	if cfg.SingleTenant() {
		if err := postgres.EnsureOrg(ctx, db, cfg.OrgID, cfg.OrgDomain, "default"); err != nil {
			runCleanup(cleanupFns)
			return nil, nil, err
		}
	}

	userRepo := postgres.NewUserRepo(db)
	membershipRepo := postgres.NewMembershipRepo(db)

	// 2) redis (best-effort)
	var redisCli RedisClient
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; falling back to in-memory state")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) state store + login limiter
	var stateStore authn.StateStore
	var limiter middleware.LoginRateLimiter
	if rc, ok := redisCli.(*redis.Client); ok {
		stateStore = redis.NewStateStore(rc, cfg.StateTTL)
		limiter = redis.NewLoginLimiter(rc, cfg.LoginRateLimit, cfg.LoginRateWindow)
	} else {
		// Single-instance fallback; state does not survive restarts and the
		// limiter is off.
		stateStore = memory.NewStateStore(cfg.StateTTL)
	}

	// 4) audit sink
	var sink audit.Sink = audit.NewLogSink(logger.Logger)
	if cfg.RabbitURL != "" && deps.NewAuditSink != nil {
		s, err := deps.NewAuditSink(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; auditing to logs only")
		} else {
			sink = s
			if c, ok := s.(interface{ Close() error }); ok {
				cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			}
		}
	}

	// 5) providers + signer
	registry := provider.Build(cfg)
	if len(registry.All()) == 0 {
		logger.Logger.Warn().Msg("no identity providers configured; only existing sessions will authenticate")
	}
	for _, d := range registry.Descriptors() {
		logger.Logger.Info().Str("provider", d.ID).Str("kind", d.Kind).Msg("identity provider enabled")
	}
	if cfg.TrustProxyHeaders {
		logger.Logger.Warn().Msg("trusting proxy identity headers; the proxy must be the only ingress")
	}

	signer := security.NewSessionSigner(cfg.SessionSecret, cfg.SessionIssuer)

	// 6) service
	authSvc := authn.NewService(
		userRepo,
		membershipRepo,
		stateStore,
		signer,
		registry,
		sink,
		authn.Config{
			OrgID:        cfg.OrgID,
			SingleTenant: cfg.SingleTenant(),
			SessionTTL:   cfg.SessionTTL,
		},
	)

	// 7) handlers + middleware
	secureCookies := cfg.Env != "dev"

	authH := handlers.NewAuthHandler(authSvc, cfg.OrgDomain, cfg.SessionTTL, secureCookies)
	healthH := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": dbPinger{db},
		"redis":    redisPinger(redisCli),
	})

	var trust middleware.TrustHeaderCheck
	if cfg.TrustProxyHeaders {
		trust = provider.NewHeaderTrust(
			cfg.ProxyUserHeader, cfg.ProxyEmailHeader,
			cfg.ProxyNameHeader, cfg.ProxyGroupsHeader,
		)
	}

	gateMW := middleware.Gate(middleware.GateConfig{
		SingleTenant: cfg.SingleTenant(),
		OrgDomain:    cfg.OrgDomain,
		Trust:        trust,
	})
	sessionMW := middleware.Session(middleware.SessionConfig{
		Signer:    signer,
		Verifiers: registry.RequestVerifiers(),
		Auth:      authSvc,
		TTL:       cfg.SessionTTL,
		Secure:    secureCookies,
	})
	var rateLimitMW func(http.Handler) http.Handler
	if limiter != nil {
		rateLimitMW = middleware.RateLimit(limiter)
	}

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health:     healthH,
		Auth:       authH,
		Session:    sessionMW,
		Gate:       gateMW,
		RateLimit:  rateLimitMW,
		Production: cfg.Env == "prod",
	})
	if err != nil {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 9) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		NewRedis: func(addr, password string, db int) RedisClient {
			return redis.New(addr, password, db)
		},
		NewAuditSink: func(url, exchange string) (audit.Sink, error) {
			return rabbitmq.NewSink(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

type dbPinger struct{ db *sql.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// redisPinger hides a nil client so the health handler can skip the check.
func redisPinger(c RedisClient) handlers.Pinger {
	if c == nil {
		return nil
	}
	return c
}

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

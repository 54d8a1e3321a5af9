package authn

import (
	"context"
	"time"

	"github.com/grepdeck/authgate/internal/audit"
	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/provider"
)

type Service struct {
	users       UserRepo
	memberships MembershipRepo
	states      StateStore
	signer      SessionSigner
	registry    ProviderRegistry
	sink        audit.Sink

	orgID        int64
	singleTenant bool
	sessionTTL   time.Duration
}

type Config struct {
	OrgID int64
	// SingleTenant pins every user into the deployment org; multi-tenant
	// deployments manage memberships elsewhere.
	SingleTenant bool
	SessionTTL   time.Duration
}

func NewService(
	users UserRepo,
	memberships MembershipRepo,
	states StateStore,
	signer SessionSigner,
	registry ProviderRegistry,
	sink audit.Sink,
	cfg Config,
) *Service {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{
		users:       users,
		memberships: memberships,
		states:      states,
		signer:      signer,
		registry:    registry,
		sink:        sink,

		orgID:        cfg.OrgID,
		singleTenant: cfg.SingleTenant,
		sessionTTL:   ttl,
	}
}

// Providers returns the public descriptors of the enabled providers, for
// sign-in pages.
func (s *Service) Providers() []provider.Descriptor {
	return s.registry.Descriptors()
}

// SessionResult is the common sign-in output for handlers.
type SessionResult struct {
	User       domain.User
	Token      string
	ExpiresIn  int64 // seconds
	FirstLogin bool
	RedirectTo string
}

// StartLogin begins a redirect sign-in with the named provider: parks the
// PKCE verifier behind a one-time state token and returns the authorization
// URL to send the browser to.
func (s *Service) StartLogin(ctx context.Context, providerID, redirectTo string) (string, error) {
	flow, err := s.registry.RedirectFlow(providerID)
	if err != nil {
		return "", err
	}

	verifier, challenge, err := provider.GeneratePKCE()
	if err != nil {
		return "", domain.ErrInternal(err)
	}

	stateToken, err := s.states.Create(ctx, StateData{
		CodeVerifier: verifier,
		Provider:     providerID,
		RedirectTo:   redirectTo,
	})
	if err != nil {
		return "", err
	}

	return flow.AuthURL(stateToken, challenge), nil
}

// CompleteLogin finishes a redirect sign-in: consumes the one-time state,
// exchanges the callback code and signs the verified identity in.
func (s *Service) CompleteLogin(ctx context.Context, providerID, stateToken, code string) (*SessionResult, error) {
	state, err := s.states.Consume(ctx, stateToken)
	if err != nil {
		return nil, domain.ErrInvalidState()
	}
	// A state minted for one provider must not complete another's flow.
	if state.Provider != providerID {
		return nil, domain.ErrInvalidState()
	}

	flow, err := s.registry.RedirectFlow(providerID)
	if err != nil {
		return nil, err
	}

	ident, err := flow.Exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		return nil, err
	}

	res, err := s.SignIn(ctx, ident)
	if err != nil {
		return nil, err
	}
	res.RedirectTo = state.RedirectTo
	return res, nil
}

// SignIn provisions the verified identity and mints a session artifact for
// it. Shared by the redirect callback and the in-place channels.
func (s *Service) SignIn(ctx context.Context, ident domain.Identity) (*SessionResult, error) {
	user, firstLogin, err := s.EnsureUser(ctx, ident)
	if err != nil {
		return nil, err
	}

	token, err := s.signer.Sign(SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Groups: ident.Groups,
	}, s.sessionTTL)
	if err != nil {
		return nil, domain.ErrTokenSignFailed(err)
	}

	s.record(ctx, "user.signed_in", user.ID)

	return &SessionResult{
		User:       user,
		Token:      token,
		ExpiresIn:  int64(s.sessionTTL.Seconds()),
		FirstLogin: firstLogin,
	}, nil
}

// CurrentUser resolves session claims to the durable user record.
func (s *Service) CurrentUser(ctx context.Context, claims SessionClaims) (domain.User, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if domain.Is(err, "user_not_found") {
			return domain.User{}, domain.ErrSessionInvalid()
		}
		return domain.User{}, err
	}
	return user, nil
}

// SignOut records the logout. The session artifact is stateless; dropping
// the cookie is the transport's job.
func (s *Service) SignOut(ctx context.Context, claims SessionClaims) {
	s.record(ctx, "user.signed_out", claims.UserID)
}

// record emits an audit event without letting the sink affect the caller.
func (s *Service) record(ctx context.Context, action, userID string) {
	s.sink.Record(ctx, audit.Event{
		Action:     action,
		ActorID:    userID,
		ActorType:  audit.TypeUser,
		TargetID:   userID,
		TargetType: audit.TypeUser,
		OrgID:      s.orgID,
	})
}

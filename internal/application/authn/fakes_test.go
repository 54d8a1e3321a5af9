package authn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grepdeck/authgate/internal/audit"
	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/provider"
)

type fakeUserRepo struct {
	mu          sync.Mutex
	byEmail     map[string]domain.User
	createErr   error
	createCalls int
	updateErr   error
	updates     []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]domain.User)}
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return domain.User{}, domain.ErrEmailAlreadyExists()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, userID, name, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, userID)
	for email, u := range f.byEmail {
		if u.ID == userID {
			if name != "" {
				u.Name = name
			}
			if image != "" {
				u.Image = image
			}
			f.byEmail[email] = u
		}
	}
	return nil
}

type fakeMembershipRepo struct {
	mu      sync.Mutex
	ensured []domain.OrgMembership
	err     error
}

func (f *fakeMembershipRepo) Ensure(_ context.Context, m domain.OrgMembership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ensured = append(f.ensured, m)
	return nil
}

type fakeStateStore struct {
	mu      sync.Mutex
	n       int
	entries map[string]StateData
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{entries: make(map[string]StateData)}
}

func (f *fakeStateStore) Create(_ context.Context, data StateData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	token := fmt.Sprintf("state-%d", f.n)
	f.entries[token] = data
	return token, nil
}

func (f *fakeStateStore) Consume(_ context.Context, token string) (StateData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.entries[token]
	if !ok {
		return StateData{}, fmt.Errorf("no such state %q", token)
	}
	delete(f.entries, token)
	return data, nil
}

type fakeSigner struct {
	err error
}

func (f *fakeSigner) Sign(claims SessionClaims, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok-" + claims.UserID, nil
}

func (f *fakeSigner) Verify(token string) (SessionClaims, error) {
	return SessionClaims{UserID: token}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeSink) Record(_ context.Context, e audit.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSink) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

// stubFlow is a canned redirect provider for exercising the sign-in flows
// without network calls.
type stubFlow struct {
	id       string
	ident    domain.Identity
	exchErr  error
	exchange []string // codes seen
}

func (s *stubFlow) ID() string                { return s.id }
func (s *stubFlow) Name() string              { return s.id }
func (s *stubFlow) Kind() domain.ProviderKind { return domain.ProviderKind(s.id) }

func (s *stubFlow) AuthURL(state, codeChallenge string) string {
	return "https://idp.example.com/authorize?state=" + state + "&code_challenge=" + codeChallenge
}

func (s *stubFlow) Exchange(_ context.Context, code, _ string) (domain.Identity, error) {
	s.exchange = append(s.exchange, code)
	if s.exchErr != nil {
		return domain.Identity{}, s.exchErr
	}
	return s.ident, nil
}

type fakeRegistry struct {
	flows map[string]provider.RedirectFlow
}

func (f *fakeRegistry) RedirectFlow(id string) (provider.RedirectFlow, error) {
	flow, ok := f.flows[id]
	if !ok {
		return nil, domain.ErrUnsupportedProvider(id)
	}
	return flow, nil
}

func (f *fakeRegistry) Descriptors() []provider.Descriptor {
	out := make([]provider.Descriptor, 0, len(f.flows))
	for id := range f.flows {
		out = append(out, provider.Descriptor{ID: id, Name: id})
	}
	return out
}

package authn

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/logger"
	"github.com/grepdeck/authgate/internal/provider"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard)
	os.Exit(m.Run())
}

type harness struct {
	users       *fakeUserRepo
	memberships *fakeMembershipRepo
	states      *fakeStateStore
	signer      *fakeSigner
	sink        *fakeSink
	registry    *fakeRegistry
	svc         *Service
}

func newHarness() *harness {
	h := &harness{
		users:       newFakeUserRepo(),
		memberships: &fakeMembershipRepo{},
		states:      newFakeStateStore(),
		signer:      &fakeSigner{},
		sink:        &fakeSink{},
		registry:    &fakeRegistry{flows: make(map[string]provider.RedirectFlow)},
	}
	h.svc = NewService(h.users, h.memberships, h.states, h.signer, h.registry, h.sink, Config{OrgID: 1, SingleTenant: true})
	return h
}

func newMultiTenantHarness() *harness {
	h := newHarness()
	h.svc = NewService(h.users, h.memberships, h.states, h.signer, h.registry, h.sink, Config{OrgID: 1})
	return h
}

func ident(email string) domain.Identity {
	i, err := domain.NewIdentity("ext-1", email, "Test User", nil, domain.ProviderGitHub)
	if err != nil {
		panic(err)
	}
	return i
}

func TestEnsureUser_FirstLoginProvisions(t *testing.T) {
	h := newHarness()

	user, first, err := h.svc.EnsureUser(context.Background(), ident("new@company.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first {
		t.Fatal("expected first login")
	}
	if user.ID == "" {
		t.Fatal("expected server-minted user id")
	}
	if user.Email != "new@company.com" || user.Name != "Test User" {
		t.Fatalf("unexpected user %+v", user)
	}

	if len(h.memberships.ensured) != 1 {
		t.Fatalf("expected one membership, got %d", len(h.memberships.ensured))
	}
	m := h.memberships.ensured[0]
	if m.UserID != user.ID || m.OrgID != 1 || m.Role != domain.OrgRoleMember {
		t.Fatalf("unexpected membership %+v", m)
	}

	actions := h.sink.actions()
	if len(actions) != 1 || actions[0] != "user.jit_provisioned" {
		t.Fatalf("unexpected audit trail %v", actions)
	}
}

func TestEnsureUser_ExistingUserIsReused(t *testing.T) {
	h := newHarness()

	first, _, err := h.svc.EnsureUser(context.Background(), ident("a@b.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, firstLogin, err := h.svc.EnsureUser(context.Background(), ident("a@b.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if firstLogin {
		t.Fatal("expected repeat login")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same user, got %q and %q", first.ID, second.ID)
	}
	if h.users.createCalls != 1 {
		// the repeat login is short-circuited by the email lookup
		t.Fatalf("expected a single create attempt, got %d", h.users.createCalls)
	}
}

func TestEnsureUser_CreateConflictAdoptsWinner(t *testing.T) {
	h := newHarness()

	// The winner's row lands between our read and write.
	winner, err := h.users.Create(context.Background(), domain.User{ID: "winner", Email: "race@b.com"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.users.createErr = domain.ErrEmailAlreadyExists()

	// Force the not-found read path by deleting and restoring around the
	// lookup is fiddly; instead call createUser directly.
	user, first, err := h.svc.createUser(context.Background(), ident("race@b.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first {
		t.Fatal("conflict loser must not count as first login")
	}
	if user.ID != winner.ID {
		t.Fatalf("expected winner's row, got %q", user.ID)
	}
}

func TestEnsureUser_ConcurrentFirstLoginsYieldOneUser(t *testing.T) {
	h := newHarness()

	const n = 16
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _, err := h.svc.EnsureUser(context.Background(), ident("burst@b.com"))
			ids[i], errs[i] = u.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("login %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("login %d got a different user: %q vs %q", i, ids[i], ids[0])
		}
	}
	if len(h.users.byEmail) != 1 {
		t.Fatalf("expected one user row, got %d", len(h.users.byEmail))
	}
}

func TestEnsureUser_MembershipFailureBlocksSignIn(t *testing.T) {
	h := newHarness()
	h.memberships.err = errors.New("db down")

	_, _, err := h.svc.EnsureUser(context.Background(), ident("a@b.com"))
	if !domain.Is(err, "provisioning_failed") {
		t.Fatalf("expected provisioning_failed, got %v", err)
	}
}

func TestEnsureUser_MultiTenantSkipsMembership(t *testing.T) {
	h := newMultiTenantHarness()
	// An org membership here would point at an org this service never
	// created; sign-in must succeed without touching memberships.
	h.memberships.err = errors.New("must not be called")

	user, first, err := h.svc.EnsureUser(context.Background(), ident("new@company.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !first || user.ID == "" {
		t.Fatalf("expected provisioned user, got %+v first=%v", user, first)
	}
	if len(h.memberships.ensured) != 0 {
		t.Fatalf("expected no membership rows, got %d", len(h.memberships.ensured))
	}
}

func TestEnsureUser_ProfileRefreshIsBestEffort(t *testing.T) {
	h := newHarness()

	if _, _, err := h.svc.EnsureUser(context.Background(), ident("a@b.com")); err != nil {
		t.Fatalf("seed login: %v", err)
	}

	renamed := ident("a@b.com")
	renamed.Name = "Renamed User"

	user, _, err := h.svc.EnsureUser(context.Background(), renamed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Renamed User" {
		t.Fatalf("expected refreshed name, got %q", user.Name)
	}

	// A failing refresh must not block the sign-in.
	h.users.updateErr = errors.New("column gone")
	again := ident("a@b.com")
	again.Name = "Another Name"
	if _, _, err := h.svc.EnsureUser(context.Background(), again); err != nil {
		t.Fatalf("refresh failure leaked: %v", err)
	}
}

func TestEnsureUser_ReEnsureKeepsMembershipIdempotent(t *testing.T) {
	h := newHarness()

	for i := 0; i < 3; i++ {
		if _, _, err := h.svc.EnsureUser(context.Background(), ident("a@b.com")); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}
	// The fake records every Ensure call; all must target the same pair.
	for _, m := range h.memberships.ensured {
		if m.OrgID != 1 || m.Role != domain.OrgRoleMember {
			t.Fatalf("unexpected membership %+v", m)
		}
	}
}

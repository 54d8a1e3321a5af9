package domain

import "strings"

// ProviderKind identifies which identity source produced an Identity.
type ProviderKind string

const (
	ProviderGitHub      ProviderKind = "github"
	ProviderGitLab      ProviderKind = "gitlab"
	ProviderGoogle      ProviderKind = "google"
	ProviderOkta        ProviderKind = "okta"
	ProviderKeycloak    ProviderKind = "keycloak"
	ProviderEntraID     ProviderKind = "microsoft-entra-id"
	ProviderIAP         ProviderKind = "gcp-iap"
	ProviderHeaderTrust ProviderKind = "header-trust"
)

// Identity is the canonical per-request identity derived from a verified
// credential. It is transient; durable state lives in User.
type Identity struct {
	ID     string
	Email  string
	Name   string
	Image  string
	Groups []string
	Source ProviderKind
}

// NewIdentity normalizes and validates the raw attributes of a verified
// credential. The email is lowercased and trimmed before validation; an
// identity without a valid email is unusable for provisioning.
func NewIdentity(id, email, name string, groups []string, source ProviderKind) (Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Identity{}, ErrMissingEmail()
	}
	if err := ValidateEmail(email); err != nil {
		return Identity{}, err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		id = email
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}

	return Identity{
		ID:     id,
		Email:  email,
		Name:   name,
		Groups: groups,
		Source: source,
	}, nil
}

// NormalizeEmail lowercases and trims an email address. All lookups and
// writes against the user store go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail rejects addresses that are not of the shape local@domain with
// non-empty parts. Control characters and whitespace anywhere in the address
// are rejected outright; header values are attacker-influenced in proxy
// deployments and CR/LF here means an injection attempt.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrMissingEmail()
	}
	for _, r := range email {
		if r < 0x21 || r == 0x7f {
			return ErrInvalidEmailFormat("control or whitespace character")
		}
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') || at == len(email)-1 {
		return ErrInvalidEmailFormat("must contain exactly one @ with non-empty local and domain parts")
	}
	return nil
}

// ParseGroups splits a comma separated groups header into a clean slice.
// An absent or empty header yields nil.
func ParseGroups(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}

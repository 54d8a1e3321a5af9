package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grepdeck/authgate/internal/application/authn"
	"github.com/grepdeck/authgate/internal/domain"
)

// SessionSigner issues and verifies the session artifact (HS256 JWT).
type SessionSigner struct {
	secret []byte
	issuer string
}

func NewSessionSigner(secret string, issuer string) *SessionSigner {
	return &SessionSigner{
		secret: []byte(secret),
		issuer: issuer,
	}
}

type sessionClaims struct {
	UserID string   `json:"uid"`
	Email  string   `json:"email"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

func (s *SessionSigner) Sign(claims authn.SessionClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	sc := sessionClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Groups: claims.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sc)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *SessionSigner) Verify(token string) (authn.SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrSessionInvalid()
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return authn.SessionClaims{}, domain.ErrSessionInvalid()
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return authn.SessionClaims{}, domain.ErrSessionInvalid()
	}

	return authn.SessionClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Groups: claims.Groups,
	}, nil
}

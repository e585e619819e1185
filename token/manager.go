// Package token signs and verifies the four token kinds issued by the auth
// core: access, refresh, email-verification, and password-reset. All kinds
// share one HS256 key; the kind claim prevents cross-purpose replay (a
// refresh token can never pass as an access token).
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the purpose a token was minted for.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
	KindVerify  Kind = "verify"
	KindReset   Kind = "reset"
)

var (
	ErrInvalid   = errors.New("invalid token")
	ErrExpired   = errors.New("token expired")
	ErrWrongKind = errors.New("token kind mismatch")
)

// Claims is the payload common to every token kind. Subject carries the
// account ID; ID (jti) is a per-token UUID used by the revocation list.
type Claims struct {
	Kind     Kind   `json:"knd"`
	Role     string `json:"rol,omitempty"`
	Verified bool   `json:"vrf,omitempty"`
	jwt.RegisteredClaims
}

// Config configures a [Manager]. Secret is required; zero TTLs reject
// issuance of that kind.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
	Leeway     time.Duration
}

// Manager is an immutable codec for the four token kinds. Safe for
// concurrent use.
type Manager struct {
	config Config
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

func (m *Manager) ttl(kind Kind) time.Duration {
	switch kind {
	case KindAccess:
		return m.config.AccessTTL
	case KindRefresh:
		return m.config.RefreshTTL
	case KindVerify:
		return m.config.VerifyTTL
	case KindReset:
		return m.config.ResetTTL
	default:
		return 0
	}
}

// Issue mints a signed token of the given kind for accountID. Role and
// verified are carried only so that access-token verification does not
// require a store read.
func (m *Manager) Issue(kind Kind, accountID, role string, verified bool) (string, error) {
	ttl := m.ttl(kind)
	if ttl <= 0 {
		return "", fmt.Errorf("no TTL configured for %s tokens", kind)
	}
	if accountID == "" {
		return "", errors.New("empty account id")
	}

	now := time.Now()
	claims := Claims{
		Kind:     kind,
		Role:     role,
		Verified: verified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Verify parses tokenStr, checks the signature and registered claims, and
// requires the kind claim to equal expect. Expired tokens return
// [ErrExpired]; a valid token of another kind returns [ErrWrongKind]; all
// other failures collapse into [ErrInvalid].
func (m *Manager) Verify(tokenStr string, expect Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	if claims.Kind != expect {
		return nil, ErrWrongKind
	}
	return claims, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultCapabilityTTL defines the fallback validity period for portal tokens.
const DefaultCapabilityTTL = 12 * time.Hour

// CapabilityConfig bundles the configuration required to build a CapabilityService.
type CapabilityConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Clock  func() time.Time
}

// OrgClaims are the claims carried by a portal capability token. The token
// grants read access to exactly one organization's data.
type OrgClaims struct {
	OrganizationID string `json:"org"`
	jwt.RegisteredClaims
}

// CapabilityService issues and verifies signed, expiring capability tokens
// used for client-portal impersonation. A failed verification means "no
// impersonation", never a hard error surfaced to the caller.
type CapabilityService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewCapabilityService constructs a CapabilityService.
func NewCapabilityService(cfg CapabilityConfig) (*CapabilityService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("capability: secret must be provided")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &CapabilityService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// Issue signs a capability token scoped to one organization.
func (s *CapabilityService) Issue(organizationID string) (string, error) {
	if organizationID == "" {
		return "", errors.New("capability: organization id is required")
	}

	now := s.now()
	claims := &OrgClaims{
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   organizationID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("capability: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a capability token. Any failure — bad
// signature, expiry, malformed input — is returned as an error; callers
// degrade to anonymous access rather than failing the request.
func (s *CapabilityService) Verify(tokenString string) (*OrgClaims, error) {
	if tokenString == "" {
		return nil, errors.New("capability: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims OrgClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("capability: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("capability: invalid issuer")
	}
	if claims.OrganizationID == "" {
		return nil, errors.New("capability: missing organization claim")
	}

	return &claims, nil
}

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles and scopes carried by admin tokens.
const (
	RoleAdmin = "admin"

	ScopeModerate       = "shop:moderate"
	ScopePrinterControl = "printer:control"
)

const issuerName = "storefront"

var (
	// ErrLoginDisabled is returned when no admin password is configured.
	ErrLoginDisabled = errors.New("admin login disabled")
	// ErrBadCredentials is returned for a wrong password.
	ErrBadCredentials = errors.New("invalid credentials")
)

// Claims represents the verified token claims.
type Claims struct {
	Subject string
	Roles   []string
	Scopes  []string
}

// HasScope reports whether the claims grant scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Verifier issues and verifies HS256 admin tokens.
type Verifier struct {
	secret   []byte
	password string
	ttl      time.Duration
	now      func() time.Time
}

// NewVerifier creates a verifier. An empty secret is replaced by 32 random
// bytes, which invalidates outstanding tokens on every restart. An empty
// password disables Login.
func NewVerifier(secret, password string, ttl time.Duration) (*Verifier, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}

	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}

	return &Verifier{
		secret:   key,
		password: password,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// LoginEnabled reports whether a password is configured.
func (v *Verifier) LoginEnabled() bool {
	return v.password != ""
}

// Login checks password and returns a signed admin token with its expiry.
func (v *Verifier) Login(password string) (string, time.Time, error) {
	if !v.LoginEnabled() {
		return "", time.Time{}, ErrLoginDisabled
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(v.password)) != 1 {
		return "", time.Time{}, ErrBadCredentials
	}
	return v.Issue(RoleAdmin, []string{RoleAdmin}, []string{ScopeModerate, ScopePrinterControl})
}

// Issue signs a token for subject.
func (v *Verifier) Issue(subject string, roles, scopes []string) (string, time.Time, error) {
	now := v.now()
	expires := now.Add(v.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":    issuerName,
		"sub":    subject,
		"roles":  roles,
		"scopes": scopes,
		"iat":    now.Unix(),
		"exp":    expires.Unix(),
	})

	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// VerifyToken verifies a token and extracts its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(issuerName), jwt.WithExpirationRequired(), jwt.WithTimeFunc(v.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return v.extractClaimsFromMap(claims)
}

// extractClaimsFromMap extracts claims from JWT map claims.
func (v *Verifier) extractClaimsFromMap(claims *jwt.MapClaims) (*Claims, error) {
	sub, ok := (*claims)["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("missing or invalid subject claim")
	}

	roles, err := extractStringSlice(claims, "roles")
	if err != nil {
		return nil, fmt.Errorf("invalid roles claim: %w", err)
	}
	scopes, err := extractStringSlice(claims, "scopes")
	if err != nil {
		return nil, fmt.Errorf("invalid scopes claim: %w", err)
	}

	if !validateRoles(roles) {
		return nil, fmt.Errorf("invalid roles: %v", roles)
	}
	if !validateScopes(scopes) {
		return nil, fmt.Errorf("invalid scopes: %v", scopes)
	}

	return &Claims{Subject: sub, Roles: roles, Scopes: scopes}, nil
}

func extractStringSlice(claims *jwt.MapClaims, key string) ([]string, error) {
	value, exists := (*claims)[key]
	if !exists {
		return []string{}, nil
	}

	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("claim %s is not an array", key)
	}

	result := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("claim %s contains non-string value", key)
		}
		result = append(result, s)
	}
	return result, nil
}

func validateRoles(roles []string) bool {
	for _, role := range roles {
		if role != RoleAdmin {
			return false
		}
	}
	return true
}

func validateScopes(scopes []string) bool {
	for _, scope := range scopes {
		switch scope {
		case ScopeModerate, ScopePrinterControl:
		default:
			return false
		}
	}
	return true
}

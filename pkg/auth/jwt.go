// Package auth validates and issues the bearer tokens that identify a user.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMissingToken     = errors.New("missing authentication token")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims carried by an Aletheia token. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c *Claims) UserID() string { return c.Subject }

// Config configures a Validator or Generator.
type Config struct {
	SigningMethod string // HS256 or RS256
	SecretKey     string // HS256
	PublicKey     string // RS256 validation, PEM
	PrivateKey    string // RS256 signing, PEM
	Issuer        string
	Audience      []string
	TTL           time.Duration
}

// Validator checks bearer tokens.
type Validator struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience []string
}

// NewValidator builds a validator for cfg.SigningMethod.
func NewValidator(cfg Config) (*Validator, error) {
	v := &Validator{issuer: cfg.Issuer, audience: cfg.Audience}
	switch strings.ToUpper(cfg.SigningMethod) {
	case "", "HS256":
		if cfg.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		v.method, v.key = jwt.SigningMethodHS256, []byte(cfg.SecretKey)
	case "RS256":
		if cfg.PublicKey == "" {
			return nil, errors.New("public key required for RS256")
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		v.method, v.key = jwt.SigningMethodRS256, key
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.SigningMethod)
	}
	return v, nil
}

// Validate parses a token, with or without its "Bearer " prefix.
func (v *Validator) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{v.method.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidClaims
	}
	if len(v.audience) > 0 && !slices.ContainsFunc(v.audience, func(a string) bool {
		return slices.Contains(claims.Audience, a)
	}) {
		return nil, fmt.Errorf("%w: invalid audience", ErrInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}
	return claims, nil
}

// Generator issues tokens; used by the CLI and tests.
type Generator struct {
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience []string
	ttl      time.Duration
	now      func() time.Time
}

// NewGenerator builds a generator for cfg.SigningMethod. Zero TTL means 24h.
func NewGenerator(cfg Config) (*Generator, error) {
	g := &Generator{issuer: cfg.Issuer, audience: cfg.Audience, ttl: cfg.TTL, now: time.Now}
	if g.ttl <= 0 {
		g.ttl = 24 * time.Hour
	}
	switch strings.ToUpper(cfg.SigningMethod) {
	case "", "HS256":
		if cfg.SecretKey == "" {
			return nil, errors.New("secret key required for HS256")
		}
		g.method, g.key = jwt.SigningMethodHS256, []byte(cfg.SecretKey)
	case "RS256":
		if cfg.PrivateKey == "" {
			return nil, errors.New("private key required for RS256")
		}
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		g.method, g.key = jwt.SigningMethodRS256, key
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.SigningMethod)
	}
	return g, nil
}

// Generate signs a token for userID.
func (g *Generator) Generate(userID, email string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: missing user ID", ErrInvalidClaims)
	}
	now := g.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			Audience:  g.audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(g.method, claims).SignedString(g.key)
}

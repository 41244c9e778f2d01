// Package token signs and verifies the compact JWTs handed to clients.
//
// Access and refresh tokens are separate classes with their own secret and
// lifetime, so a leaked access secret cannot mint refresh tokens and vice
// versa.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Class int

const (
	Access Class = iota
	Refresh
)

func (c Class) String() string {
	switch c {
	case Access:
		return "access"
	case Refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

var ErrConfig = errors.New("invalid token config")

const audience = "user"

// Claims is the claim set embedded in both token classes. Refresh tokens
// carry the session ID only.
type Claims struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type classParams struct {
	secret []byte
	ttl    time.Duration
}

type Codec struct {
	classes map[Class]classParams
	now     func() time.Time
}

// NewCodec validates cfg and returns a Codec. now may be nil, in which case
// time.Now is used.
func NewCodec(cfg Config, now func() time.Time) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrConfig
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrConfig
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrConfig
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{
		classes: map[Class]classParams{
			Access:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			Refresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: now,
	}, nil
}

// TTL returns the configured lifetime of class.
func (c *Codec) TTL(class Class) time.Duration {
	return c.classes[class].ttl
}

// Sign embeds claims plus an expiry derived from the class lifetime.
func (c *Codec) Sign(claims Claims, class Class) (string, error) {
	params, ok := c.classes[class]
	if !ok {
		return "", ErrConfig
	}

	now := c.now()
	out := Claims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(params.ttl)),
		},
	}
	if class == Refresh {
		out.UserID = ""
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, out).SignedString(params.secret)
}

// Verify returns the claims of a valid token. Any failure (bad signature,
// malformed input, elapsed expiry, wrong class) yields ok=false without
// further detail.
func (c *Codec) Verify(tokenStr string, class Class) (*Claims, bool) {
	params, ok := c.classes[class]
	if !ok || tokenStr == "" {
		return nil, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return params.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if claims.SessionID == "" {
		return nil, false
	}
	if class == Access && claims.UserID == "" {
		return nil, false
	}

	return claims, true
}

package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	c, err := NewCodec(Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    30 * 24 * time.Hour,
	}, clock.Now)
	require.NoError(t, err)
	return c, clock
}

func TestSignVerify_RoundTrip(t *testing.T) {
	c, _ := newTestCodec(t)

	tok, err := c.Sign(Claims{UserID: "u1", SessionID: "s1"}, Access)
	require.NoError(t, err)

	claims, ok := c.Verify(tok, Access)
	require.True(t, ok)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestSign_RefreshCarriesSessionOnly(t *testing.T) {
	c, _ := newTestCodec(t)

	tok, err := c.Sign(Claims{UserID: "u1", SessionID: "s1"}, Refresh)
	require.NoError(t, err)

	claims, ok := c.Verify(tok, Refresh)
	require.True(t, ok)
	assert.Empty(t, claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestVerify_Expired(t *testing.T) {
	c, clock := newTestCodec(t)

	tok, err := c.Sign(Claims{UserID: "u1", SessionID: "s1"}, Access)
	require.NoError(t, err)

	clock.t = clock.t.Add(15*time.Minute + time.Second)
	_, ok := c.Verify(tok, Access)
	assert.False(t, ok)
}

func TestVerify_CrossClassRejected(t *testing.T) {
	c, _ := newTestCodec(t)

	access, err := c.Sign(Claims{UserID: "u1", SessionID: "s1"}, Access)
	require.NoError(t, err)
	refresh, err := c.Sign(Claims{SessionID: "s1"}, Refresh)
	require.NoError(t, err)

	_, ok := c.Verify(access, Refresh)
	assert.False(t, ok, "access token must not verify as refresh")
	_, ok = c.Verify(refresh, Access)
	assert.False(t, ok, "refresh token must not verify as access")
}

func TestVerify_Malformed(t *testing.T) {
	c, _ := newTestCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"truncated", "eyJhbGciOiJIUzI1NiJ9."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Verify(tt.token, Access)
			assert.False(t, ok)
		})
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	c, clock := newTestCodec(t)

	claims := Claims{
		UserID:    "u1",
		SessionID: "s1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, ok := c.Verify(tok, Access)
	assert.False(t, ok)
}

func TestNewCodec_Config(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing access secret", Config{RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"missing refresh secret", Config{AccessSecret: "a", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"shared secret", Config{AccessSecret: "x", RefreshSecret: "x", AccessTTL: time.Minute, RefreshTTL: time.Hour}},
		{"zero ttl", Config{AccessSecret: "a", RefreshSecret: "r", RefreshTTL: time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.cfg, nil)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

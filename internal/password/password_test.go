package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastArgon2() Argon2idParams {
	return Argon2idParams{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashVerify(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		prefix string
	}{
		{"bcrypt", Config{Algorithm: AlgoBcrypt, BcryptCost: bcrypt.MinCost}, "$2a$"},
		{"argon2id", Config{Algorithm: AlgoArgon2id, Argon2id: fastArgon2()}, argon2Prefix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.cfg)
			require.NoError(t, err)

			hash, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(hash, tt.prefix), "hash %q", hash)
			assert.NotContains(t, hash, "correct horse")

			assert.True(t, h.Verify("correct horse", hash))
			assert.False(t, h.Verify("wrong horse", hash))
		})
	}
}

func TestHash_Salted(t *testing.T) {
	h, err := NewHasher(Config{Algorithm: AlgoArgon2id, Argon2id: fastArgon2()})
	require.NoError(t, err)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_CrossAlgorithm(t *testing.T) {
	bc, err := NewHasher(Config{Algorithm: AlgoBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	ar, err := NewHasher(Config{Algorithm: AlgoArgon2id, Argon2id: fastArgon2()})
	require.NoError(t, err)

	oldHash, err := bc.Hash("pw-123456")
	require.NoError(t, err)

	assert.True(t, ar.Verify("pw-123456", oldHash), "argon2id hasher must still verify bcrypt hashes")
}

func TestVerify_FailsClosed(t *testing.T) {
	h, err := NewHasher(Config{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=abc$salt$key",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=99999999,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		assert.False(t, h.Verify("anything", hash), "hash %q", hash)
	}
}

func TestNewHasher_Config(t *testing.T) {
	_, err := NewHasher(Config{Algorithm: "md5"})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewHasher(Config{Algorithm: AlgoBcrypt, BcryptCost: 99})
	assert.ErrorIs(t, err, ErrConfig)

	h, err := NewHasher(Config{})
	require.NoError(t, err)
	assert.Equal(t, AlgoBcrypt, h.Algorithm())
}

func TestHashVerify_LongPassword(t *testing.T) {
	h, err := NewHasher(Config{Algorithm: AlgoBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	long := strings.Repeat("a", 100)
	hash, err := h.Hash(long)
	require.NoError(t, err)

	assert.True(t, h.Verify(long, hash))
	assert.False(t, h.Verify(long[:72], hash), "prefix up to the bcrypt limit must not match")
	assert.False(t, h.Verify(long+"b", hash))

	short := strings.Repeat("b", 72)
	shortHash, err := h.Hash(short)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(shortHash), []byte(short)), "inputs within the limit hash unchanged")
}

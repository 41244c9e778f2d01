// Package password hashes and verifies user passwords.
//
// New hashes are produced with the configured algorithm. Verification picks
// the algorithm from the stored hash itself, so switching PASSWORD_HASHER does
// not invalidate existing credentials.
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"

	argon2Prefix  = "$argon2id$"
	argon2Version = argon2.Version

	// bcrypt rejects longer inputs.
	bcryptMaxInput = 72
)

var (
	ErrConfig      = errors.New("invalid password hasher config")
	ErrInvalidHash = errors.New("invalid password hash")
)

type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2id   Argon2idParams
}

type Hasher struct {
	cfg Config
}

func NewHasher(cfg Config) (*Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Algorithm)) {
	case "", AlgoBcrypt:
		cfg.Algorithm = AlgoBcrypt
		if cfg.BcryptCost == 0 {
			cfg.BcryptCost = bcrypt.DefaultCost
		}
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, ErrConfig
		}
	case AlgoArgon2id:
		cfg.Algorithm = AlgoArgon2id
		if cfg.Argon2id == (Argon2idParams{}) {
			cfg.Argon2id = DefaultArgon2idParams()
		}
		p := cfg.Argon2id
		if p.MemoryKiB == 0 || p.Iterations == 0 || p.Parallelism == 0 || p.SaltLength < 8 || p.KeyLength < 16 {
			return nil, ErrConfig
		}
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrConfig, cfg.Algorithm)
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Argon2id == (Argon2idParams{}) {
		cfg.Argon2id = DefaultArgon2idParams()
	}
	return &Hasher{cfg: cfg}, nil
}

func (h *Hasher) Algorithm() string { return h.cfg.Algorithm }

// Hash returns a salted one-way hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if h.cfg.Algorithm == AlgoArgon2id {
		return hashArgon2id(plaintext, h.cfg.Argon2id)
	}
	out, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hash. It fails closed: a
// malformed or unsupported hash is a mismatch.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if strings.HasPrefix(hash, argon2Prefix) {
		ok, err := verifyArgon2id(plaintext, hash, h.cfg.Argon2id)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plaintext)) == nil
}

// bcryptInput returns plaintext unchanged when bcrypt can take it, otherwise
// the base64 SHA-256 digest of it.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func hashArgon2id(plaintext string, p Argon2idParams) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func verifyArgon2id(plaintext, encoded string, limits Argon2idParams) (bool, error) {
	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != AlgoArgon2id {
		return false, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return false, ErrInvalidHash
	}

	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return false, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 {
		return false, ErrInvalidHash
	}
	// Refuse stored parameters far above our own limits.
	if mem > limits.MemoryKiB*2 || iter > limits.Iterations*2 || par > limits.Parallelism*2 {
		return false, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return false, ErrInvalidHash
	}
	expected, err := b64.DecodeString(parts[5])
	if err != nil || len(expected) < 16 || len(expected) > 128 {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(plaintext), salt, iter, mem, par, uint32(len(expected))) // #nosec G115 -- bounded above
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("incompatible password hash version")
)

// Argon2idParams tunes password hashing. Stored hashes carry their own
// parameters, so changing the defaults does not invalidate existing ones;
// Login upgrades them on the next successful sign-in.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// storedHash is the decoded form of an employees.password_hash value:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>
type storedHash struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h storedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func (h storedHash) matches(password string) bool {
	got := argon2.IDKey([]byte(password), h.salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)
	return subtle.ConstantTimeCompare(h.key, got) == 1
}

// outdated reports whether h was produced with weaker or different settings
// than p.
func (h storedHash) outdated(p Argon2idParams) bool {
	return h.params.Memory != p.Memory ||
		h.params.Iterations != p.Iterations ||
		h.params.Parallelism != p.Parallelism ||
		h.params.KeyLength != p.KeyLength ||
		uint32(len(h.salt)) != p.SaltLength
}

func decodeHash(encoded string) (storedHash, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return storedHash{}, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return storedHash{}, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return storedHash{}, fmt.Errorf("%w: v=%d", ErrIncompatiblePasswordVersion, version)
	}

	var h storedHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Iterations, &h.params.Parallelism); err != nil {
		return storedHash{}, ErrInvalidPasswordHash
	}
	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return storedHash{}, ErrInvalidPasswordHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return storedHash{}, ErrInvalidPasswordHash
	}
	h.params.SaltLength = uint32(len(h.salt))
	h.params.KeyLength = uint32(len(h.key))
	return h, nil
}

// HashPassword hashes password with a fresh random salt and returns the
// encoded form stored on the employee.
func HashPassword(password string, params Argon2idParams) (string, error) {
	h := storedHash{params: params, salt: make([]byte, params.SaltLength)}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}
	h.key = argon2.IDKey([]byte(password), h.salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return h.String(), nil
}

// CheckPassword compares password with an encoded hash in constant time.
// Returns ErrInvalidCredentials on mismatch.
func CheckPassword(encoded, password string) error {
	h, err := decodeHash(encoded)
	if err != nil {
		return err
	}
	if !h.matches(password) {
		return ErrInvalidCredentials
	}
	return nil
}

// NeedsRehash reports whether encoded should be replaced by a hash made with
// params. Undecodable hashes always need one.
func NeedsRehash(encoded string, params Argon2idParams) bool {
	h, err := decodeHash(encoded)
	return err != nil || h.outdated(params)
}

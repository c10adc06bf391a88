// Package security hashes staff passwords and enforces the password policy.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"

	"github.com/supserrr/vevurn-sub002/pkg/config"
)

const minPasswordLength = 8

// readable leaves out glyphs that are easy to confuse aloud: 0/O, 1/l/I.
const readable = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

var (
	ErrInvalidHash  = errors.New("invalid argon2id hash")
	ErrWeakPassword = errors.New("password must be at least 8 characters and mix letters and digits")
)

var b64 = base64.RawStdEncoding

// ArgonParams are the cost settings stored in every hash string.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

func (p ArgonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
}

// phc is a decoded "$argon2id$v=..$m=..,t=..,p=..$salt$key" string.
type phc struct {
	params ArgonParams
	salt   []byte
	key    []byte
}

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func parsePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return phc{}, ErrInvalidHash
	}
	var h phc
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.params.Memory, &h.params.Time, &h.params.Parallelism); err != nil {
		return phc{}, ErrInvalidHash
	}
	if h.params.Memory == 0 || h.params.Time == 0 || h.params.Parallelism == 0 {
		return phc{}, ErrInvalidHash
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil {
		return phc{}, ErrInvalidHash
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return phc{}, ErrInvalidHash
	}
	h.params.SaltLen = uint32(len(h.salt))
	h.params.KeyLen = uint32(len(h.key))
	return h, nil
}

// Hasher hashes staff passwords with the configured Argon2id cost.
type Hasher struct {
	params ArgonParams
}

func NewHasher(cfg config.PasswordConfig) *Hasher {
	return &Hasher{params: ArgonParams{
		Memory:      uint32(clamp(cfg.ArgonMemoryKB, 8, 512*1024)),
		Time:        uint32(clamp(cfg.ArgonTime, 1, 10)),
		Parallelism: uint8(clamp(cfg.ArgonParallelism, 1, 255)),
		SaltLen:     uint32(clamp(cfg.ArgonSaltLen, 8, 64)),
		KeyLen:      uint32(clamp(cfg.ArgonKeyLen, 16, 64)),
	}}
}

func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return phc{params: h.params, salt: salt, key: h.params.derive(password, salt)}.String(), nil
}

// Verify checks password against encoded using the cost stored in encoded,
// so hashes minted under older settings keep working.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	stored, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(stored.key, stored.params.derive(password, stored.salt)) == 1, nil
}

// NeedsRehash is true when encoded was not produced with the current cost.
func (h *Hasher) NeedsRehash(encoded string) bool {
	stored, err := parsePHC(encoded)
	return err != nil || stored.params != h.params
}

func ValidatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return ErrWeakPassword
	}
	letter := strings.IndexFunc(password, unicode.IsLetter) >= 0
	digit := strings.IndexFunc(password, unicode.IsDigit) >= 0
	if !letter || !digit {
		return ErrWeakPassword
	}
	return nil
}

// GenerateTempPassword returns a policy-compliant password for newly created
// staff, drawn from a read-aloud friendly alphabet.
func GenerateTempPassword(length int) (string, error) {
	if length < minPasswordLength {
		return "", fmt.Errorf("length must be at least %d", minPasswordLength)
	}
	// 256 is not a multiple of the alphabet size, so bytes past the last
	// full cycle are rejected to keep the draw uniform.
	limit := byte(256 - 256%len(readable))
	buf := make([]byte, 1)
	for {
		var sb strings.Builder
		for sb.Len() < length {
			if _, err := rand.Read(buf); err != nil {
				return "", err
			}
			if buf[0] >= limit {
				continue
			}
			sb.WriteByte(readable[int(buf[0])%len(readable)])
		}
		if candidate := sb.String(); ValidatePassword(candidate) == nil {
			return candidate, nil
		}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

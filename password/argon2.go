package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	argon2Prefix          = "$argon2id$"
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MaxPasswordBytes bounds the work an attacker can force per attempt.
	// Zero means DefaultMaxPasswordBytes.
	MaxPasswordBytes int
}

// DefaultConfig returns the recommended interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 produces PHC-encoded Argon2id hashes.
type Argon2 struct {
	config Config
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes == 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash encodes secret as $argon2id$v=19$m=..,t=..,p=..$salt$key. Bytes are
// hashed exactly as given; no Unicode normalization.
func (a *Argon2) Hash(secret string) (string, error) {
	if err := checkLength(secret, minPassBytes, a.config.MaxPasswordBytes); err != nil {
		return "", err
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(secret, encoded string) (bool, error) {
	if len(secret) > a.config.MaxPasswordBytes {
		return false, ErrPasswordTooLong
	}
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), h.salt, h.time, h.memory, h.parallelism, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// NeedsUpgrade reports whether encoded used weaker parameters than a.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	return a.config.Memory > h.memory ||
		a.config.Time > h.time ||
		a.config.Parallelism > h.parallelism ||
		int(a.config.KeyLength) != len(h.key), nil
}

func (a *Argon2) Owns(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrMalformedHash, version)
	}

	h := &phcHash{}
	if err := parseParams(parts[3], h); err != nil {
		return nil, err
	}

	var err error
	if h.salt, err = decodeB64(parts[4]); err != nil || len(h.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = decodeB64(parts[5]); err != nil || len(h.key) == 0 {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return h, nil
}

// decodeB64 accepts padded and unpadded standard base64 so hashes written by
// other PHC implementations still verify.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func parseParams(part string, h *phcHash) error {
	seen := 0
	for _, pair := range strings.Split(part, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: parameter %q", ErrMalformedHash, pair)
		}

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return fmt.Errorf("%w: memory", ErrMalformedHash)
			}
			h.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return fmt.Errorf("%w: time", ErrMalformedHash)
			}
			h.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return fmt.Errorf("%w: parallelism", ErrMalformedHash)
			}
			h.parallelism = uint8(n)
		default:
			return fmt.Errorf("%w: parameter %q", ErrMalformedHash, k)
		}
		seen++
	}

	if seen != 3 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Memory < minMemoryKB:
		return errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return errors.New("password key length must be >= 16")
	case cfg.MaxPasswordBytes < 0:
		return errors.New("password max bytes must be >= 0")
	}
	return nil
}

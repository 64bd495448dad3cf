package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes caps input length when a Config leaves it unset.
const DefaultMaxPasswordBytes = 1024

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrMalformedHash    = errors.New("malformed password hash")
	ErrUnknownFormat    = errors.New("unrecognized password hash format")
)

// Hasher hashes secrets and checks them against stored encodings.
// Verify returns (false, nil) for a wrong secret and an error only for a hash
// it cannot interpret.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
	// Owns reports whether encoded was produced by this kind of hasher.
	Owns(encoded string) bool
}

// Chain hashes with Primary and verifies with whichever hasher owns the stored
// encoding. Anything not owned by Primary needs an upgrade, so records migrate
// on the next successful login.
type Chain struct {
	Primary Hasher
	Legacy  []Hasher
}

func (c Chain) Hash(secret string) (string, error) {
	return c.Primary.Hash(secret)
}

func (c Chain) Verify(secret, encoded string) (bool, error) {
	h, err := c.owner(encoded)
	if err != nil {
		return false, err
	}
	return h.Verify(secret, encoded)
}

func (c Chain) NeedsUpgrade(encoded string) (bool, error) {
	h, err := c.owner(encoded)
	if err != nil {
		return false, err
	}
	if h != c.Primary {
		return true, nil
	}
	return h.NeedsUpgrade(encoded)
}

func (c Chain) Owns(encoded string) bool {
	_, err := c.owner(encoded)
	return err == nil
}

func (c Chain) owner(encoded string) (Hasher, error) {
	if c.Primary != nil && c.Primary.Owns(encoded) {
		return c.Primary, nil
	}
	for _, h := range c.Legacy {
		if h.Owns(encoded) {
			return h, nil
		}
	}
	return nil, ErrUnknownFormat
}

func checkLength(secret string, min, max int) error {
	if len(secret) < min {
		return ErrPasswordTooShort
	}
	if len(secret) > max {
		return ErrPasswordTooLong
	}
	return nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

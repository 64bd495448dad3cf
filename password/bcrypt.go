package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently ignores input past 72 bytes; reject it instead.
const bcryptMaxBytes = 72

// Bcrypt wraps golang.org/x/crypto/bcrypt. It is mostly useful as a Legacy
// entry in a Chain for records created by older systems.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Zero cost means bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(secret string) (string, error) {
	if err := checkLength(secret, minPassBytes, bcryptMaxBytes); err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(secret, encoded string) (bool, error) {
	if len(secret) > bcryptMaxBytes {
		return false, ErrPasswordTooLong
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrMalformedHash
	}
}

func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, ErrMalformedHash
	}
	return cost < b.cost, nil
}

func (b *Bcrypt) Owns(encoded string) bool {
	return hasAnyPrefix(encoded, "$2a$", "$2b$", "$2y$")
}

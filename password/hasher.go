package password

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedHash is returned when a stored hash cannot be parsed as a
// bcrypt hash. A plain mismatch is not an error; Verify reports it as false.
var ErrMalformedHash = errors.New("malformed password hash")

// Config holds hasher tuning parameters.
type Config struct {
	// Cost is the bcrypt cost factor. Zero selects bcrypt.DefaultCost.
	Cost int
}

// Hasher wraps bcrypt hashing and verification at a fixed cost factor.
//
// Hasher instances are intended to be configured during initialization and
// then treated as immutable.
type Hasher struct {
	cost int
}

// NewHasher validates the cost factor and returns a ready Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Hasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of plain at the configured cost.
func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) == 0 {
		return "", errors.New("empty password")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash. A mismatch returns
// (false, nil); only a hash that cannot be parsed produces an error. bcrypt's
// comparison is constant-time with respect to the derived key.
func (h *Hasher) Verify(plain, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
}

// NeedsUpgrade reports whether the stored hash was produced at a lower cost
// than the hasher is configured for and should be re-hashed on next login.
func (h *Hasher) NeedsUpgrade(hash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < h.cost, nil
}

// ConstantTimeEquals compares two byte slices without leaking the position
// of the first differing byte. Length differences still short-circuit.
func ConstantTimeEquals(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

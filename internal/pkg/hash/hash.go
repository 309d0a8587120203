// Package hash stores passcodes as salted, peppered one-way hashes and
// verifies candidates against them in constant time.
package hash

import (
	"fmt"
	"strings"
)

// Hash produces and verifies encoded one-way hashes.
type Hash interface {
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches hashed. Comparison is constant time.
	Verify(hashed, str string) bool
}

// New returns the hasher registered under algorithm ("argon2id" or "bcrypt").
// bcryptCost is ignored for argon2id.
func New(algorithm, pepper string, bcryptCost int) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "argon2id":
		return NewArgon2id(pepper), nil
	case "bcrypt":
		return NewBcrypt(bcryptCost, pepper), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algorithm)
	}
}

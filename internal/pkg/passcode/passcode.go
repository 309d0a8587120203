// Package passcode generates numeric one-time codes from a cryptographically
// secure source.
package passcode

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"strings"
)

// ErrInvalidLength is returned for a non-positive code length.
var ErrInvalidLength = errors.New("passcode: length must be positive")

var ten = big.NewInt(10)

// Generator produces numeric codes of a fixed length.
type Generator struct {
	length int
	source io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator(length int) (*Generator, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	return &Generator{length: length, source: rand.Reader}, nil
}

// Length is the number of digits in every generated code.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a code whose digits are each drawn uniformly from 0-9.
func (g *Generator) Generate() (string, error) {
	var b strings.Builder
	b.Grow(g.length)

	for range g.length {
		d, err := rand.Int(g.source, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}

	return b.String(), nil
}

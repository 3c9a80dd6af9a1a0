// Package random provides seeding and selection helpers.
//
// Seeds come from crypto/rand unless configured. Selection goes through a
// Picker so callers can swap in a fixed sequence under test.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// SeedSource records where a seed came from.
type SeedSource string

const (
	SeedSourceConfig SeedSource = "config"
	SeedSourceServer SeedSource = "server"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns configured when non-zero, otherwise a fresh seed from
// generate (NewSeed when nil).
func ResolveSeed(configured int64, generate func() (int64, error)) (int64, SeedSource, error) {
	if configured != 0 {
		return configured, SeedSourceConfig, nil
	}
	if generate == nil {
		generate = NewSeed
	}
	seed, err := generate()
	if err != nil {
		return 0, "", err
	}
	return seed, SeedSourceServer, nil
}

// Hex returns n random bytes as a 0x-prefixed lowercase hex string.
func Hex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("byte count must be positive")
	}
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

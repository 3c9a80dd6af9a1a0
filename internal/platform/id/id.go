// Package id generates opaque identifiers.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a UUIDv4 encoded as lowercase unpadded base32 (26 characters).
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// Prefixed returns NewID with a kind prefix, e.g. "badge-<id>".
func Prefixed(prefix string) (string, error) {
	value, err := NewID()
	if err != nil {
		return "", err
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return value, nil
	}
	return prefix + "-" + value, nil
}

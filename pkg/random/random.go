// Package random provides cryptographically secure random string generation.
package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// URL-safe alphabet: no padding characters, safe as a path segment.
const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRandomString returns an unguessable URL-safe string of the given length.
func NewRandomString(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive, got %d", length)
	}

	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		result[i] = charset[n.Int64()]
	}

	return string(result), nil
}

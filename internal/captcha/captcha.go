package captcha

// Package captcha produces the short login challenge strings shown on the
// login page. The challenge is a weak bot-deterrent, not a security control:
// it is generated and verified by the portal itself.

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet is the character set challenges are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of characters in a challenge.
const Length = 6

// Generate returns a fresh challenge of Length characters drawn uniformly
// from Alphabet. Callers must store the value and compare later input with
// Matches; a challenge is never reused across refreshes.
func Generate() (string, error) {
	return GenerateN(Length)
}

// GenerateN returns a challenge of n characters. n must be positive.
func GenerateN(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("captcha length must be positive, got %d", n)
	}

	// Rejection sampling: 256 is not a multiple of len(Alphabet), so a plain
	// modulo would skew toward the head of the alphabet.
	const limit = 256 - 256%len(Alphabet)

	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// Matches compares user input against a challenge case-insensitively.
func Matches(challenge, input string) bool {
	if challenge == "" {
		return false
	}
	return strings.EqualFold(challenge, input)
}

package answer

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/quizdeck/internal/domain"
)

// Normalize prepares free text for comparison.
// It normalizes line endings, trims surrounding whitespace and lowercases.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// Match reports whether a typed answer matches the expected value,
// ignoring case and leading/trailing whitespace.
func Match(given, want string) bool {
	return Normalize(given) == Normalize(want)
}

// Fingerprint returns a SHA-256 hex digest over the normalized cards of a
// deck, in order. Decks that differ only by case or padding share a
// fingerprint.
func Fingerprint(cards []domain.Card) string {
	parts := make([]string, 0, len(cards)*2)
	for _, c := range cards {
		parts = append(parts, Normalize(c.Term), Normalize(c.Definition))
	}
	// Newline separation keeps "ab"+"c" distinct from "a"+"bc".
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return fmt.Sprintf("%x", sum)
}

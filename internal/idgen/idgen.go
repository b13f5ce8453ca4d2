// Package idgen generates the fixed-length lowercase hexadecimal identifiers
// used by model documents and hotkeys, backed by nanoid.
package idgen

import (
	"errors"
	"fmt"
	"regexp"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set of generated identifiers.
var Alphabet = "0123456789abcdef"

// Length is the number of characters of an identifier.
var Length = 32

// MaxAttempts bounds the retries when a generated id collides with a taken one.
var MaxAttempts = 8

// ErrExhausted is returned when every attempt collided.
var ErrExhausted = errors.New("idgen: could not generate a unique identifier")

var validID = regexp.MustCompile(`^[a-f0-9]{32}$`)

// IsValid reports whether id has the identifier format.
func IsValid(id string) bool {
	return validID.MatchString(id)
}

// Generate returns a fresh random identifier.
func Generate() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// Unique returns a fresh identifier for which taken reports false.
func Unique(taken func(string) bool) (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		id, err := Generate()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(id) {
			return id, nil
		}
	}
	return "", ErrExhausted
}

package roomid

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Base32 alphabet (Crockford's): no I, L, O or U, so codes read aloud
// or typed from a shared screen don't get mangled.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length of a room code. Short enough to share verbally, ~1 billion
// combinations; the caller retries on the rare collision.
const Length = 6

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator produces room codes with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator with optional RandSource
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new room code using crypto/rand
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new room code using the generator's RandSource
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(Length)

	if g.randSource != nil {
		// Deterministic source for tests
		for i := 0; i < Length; i++ {
			b.WriteByte(alphabet[g.randSource.Intn(len(alphabet))])
		}
		return b.String()
	}

	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i := 0; i < Length; i++ {
		b.WriteByte(alphabet[int(buf[i])%len(alphabet)])
	}
	return b.String()
}

// Validate checks that a room code is well formed
func Validate(code string) error {
	if len(code) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(code))
	}

	for i, char := range code {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}

	return nil
}

// Normalize lowercases a code and maps the easily-confused characters
// onto their canonical alphabet members so hand-typed codes still match.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	r := strings.NewReplacer("i", "1", "l", "1", "o", "0", "u", "v")
	return r.Replace(code)
}

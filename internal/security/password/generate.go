// Package password genera los passwords del identity service para cuentas
// aprovisionadas automáticamente.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet is the character set of generated passwords.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength is the length used for provisioned accounts.
const DefaultLength = 8

// Generate returns n characters drawn uniformly from Alphabet.
func Generate(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("password: invalid length %d", n)
	}
	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("password: random: %w", err)
		}
		out[i] = Alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Package secretbox cifra secretos cortos (passwords generados para el
// identity service) antes de persistirlos.
//
// Formato: base64(nonce)|base64(ciphertext), NaCl secretbox
// (XSalsa20-Poly1305) con clave de 32 bytes.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyLength   = 32
	nonceLength = 24
	sep         = "|"
)

var (
	// ErrInvalidKey indica una clave que no decodifica a 32 bytes.
	ErrInvalidKey = errors.New("secretbox: invalid key")

	// ErrMalformed indica un ciphertext con formato inválido.
	ErrMalformed = errors.New("secretbox: malformed ciphertext")

	// ErrDecrypt indica que la autenticación del ciphertext falló.
	ErrDecrypt = errors.New("secretbox: decryption failed")
)

// Box seals and opens strings with a fixed key.
type Box struct {
	key [keyLength]byte
}

// New crea un Box con una clave cruda de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(key), keyLength)
	}
	b := &Box{}
	copy(b.key[:], key)
	return b, nil
}

// Parse acepta la clave en base64 (std o raw) o hex (64 chars).
func Parse(key string) (*Box, error) {
	key = strings.TrimSpace(key)
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == keyLength {
		return New(b)
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == keyLength {
		return New(b)
	}
	if len(key) == 2*keyLength {
		if b, err := hex.DecodeString(key); err == nil {
			return New(b)
		}
	}
	return nil, ErrInvalidKey
}

// Seal cifra plain y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Seal(plain string) (string, error) {
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	ct := secretbox.Seal(nil, []byte(plain), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(nonce[:]) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un valor producido por Seal.
func (b *Box) Open(sealed string) (string, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return "", ErrMalformed
	}
	nb, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(nb) != nonceLength {
		return "", ErrMalformed
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformed
	}
	var nonce [nonceLength]byte
	copy(nonce[:], nb)
	pt, ok := secretbox.Open(nil, ct, &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(pt), nil
}

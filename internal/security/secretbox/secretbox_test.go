package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	box, err := New(testKey())
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	ct, err := box.Seal("k3y9a0zq")
	if err != nil {
		t.Fatalf("Seal err: %v", err)
	}
	if strings.Contains(ct, "k3y9a0zq") {
		t.Fatalf("ciphertext leaks plaintext: %q", ct)
	}
	pt, err := box.Open(ct)
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	if pt != "k3y9a0zq" {
		t.Fatalf("plaintext mismatch: got %q", pt)
	}
}

func TestSeal_NonceIsRandom(t *testing.T) {
	box, _ := New(testKey())
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	if a == b {
		t.Fatalf("two seals of the same plaintext must differ")
	}
}

func TestOpen_DetectsTamper(t *testing.T) {
	box, _ := New(testKey())
	ct, _ := box.Seal("top secret")
	parts := strings.Split(ct, "|")
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatal(err)
	}
	bs[0] ^= 0xFF
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(bs)
	if _, err := box.Open(tampered); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestOpen_Malformed(t *testing.T) {
	box, _ := New(testKey())
	for _, in := range []string{"", "abc", "a|b|c", "!!|!!"} {
		if _, err := box.Open(in); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Open(%q): expected ErrMalformed, got %v", in, err)
		}
	}
}

func TestParse_Encodings(t *testing.T) {
	raw := testKey()
	inputs := []string{
		base64.StdEncoding.EncodeToString(raw),
		base64.RawStdEncoding.EncodeToString(raw),
		hex.EncodeToString(raw),
	}
	for _, in := range inputs {
		box, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", in, err)
		}
		ct, _ := box.Seal("x")
		other, _ := New(raw)
		if pt, err := other.Open(ct); err != nil || pt != "x" {
			t.Fatalf("key from %q does not match raw key", in)
		}
	}
	if _, err := Parse("short"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

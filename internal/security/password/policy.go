package password

import "strings"

// Policy describe la forma esperada de un password generado.
type Policy struct {
	Length   int
	Alphabet string
}

// DefaultPolicy matches Generate(DefaultLength).
var DefaultPolicy = Policy{Length: DefaultLength, Alphabet: Alphabet}

// Validate reports whether s has the policy length and only uses the
// policy alphabet. Reasons are machine-readable.
func (p Policy) Validate(s string) (ok bool, reasons []string) {
	if len(s) != p.Length {
		reasons = append(reasons, "wrong_length")
	}
	for _, r := range s {
		if !strings.ContainsRune(p.Alphabet, r) {
			reasons = append(reasons, "invalid_char")
			break
		}
	}
	return len(reasons) == 0, reasons
}

package store

// Sealer cifra y descifra valores sensibles en reposo.
// *secretbox.Box lo implementa.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// Plaintext no cifra nada.
type Plaintext struct{}

func (Plaintext) Seal(plain string) (string, error)  { return plain, nil }
func (Plaintext) Open(sealed string) (string, error) { return sealed, nil }

package authn

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected envuelve toda causa de login rechazado.
	ErrRejected = errors.New("authentication rejected")

	// ErrNotAMember: la identidad no es amiga mutua de la cuenta de referencia.
	ErrNotAMember = errors.New("not a mutual friend of the reference account")

	// ErrIdentityServiceAuth: Keystone rechazó las credenciales generadas.
	ErrIdentityServiceAuth = errors.New("identity service login failed")

	// ErrSetupInProgress: existe un registro sin tenant todavía dentro del
	// período de gracia.
	ErrSetupInProgress = errors.New("account setup still in progress")

	// ErrProviderDisabled: no hay cliente configurado para el provider.
	ErrProviderDisabled = errors.New("provider not configured")
)

func reject(cause error) error {
	return fmt.Errorf("%w: %w", ErrRejected, cause)
}

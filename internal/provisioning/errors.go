package provisioning

import (
	"errors"
	"fmt"
)

// ErrProvisioning matchea cualquier *Error vía errors.Is.
var ErrProvisioning = errors.New("provisioning failed")

// Pasos del aprovisionamiento, en orden.
const (
	StepAdminAuth    = "admin_auth"
	StepCreateTenant = "create_tenant"
	StepCreateUser   = "create_user"
	StepResolveRole  = "resolve_role"
	StepAssignRole   = "assign_role"
)

// Error indica en qué paso falló el aprovisionamiento.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrProvisioning }

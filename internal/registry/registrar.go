package registry

import (
	"context"
	"fmt"

	"github.com/Zixiao-System/leizi-formula/internal/config"
)

// State is a binary's registration state.
type State string

const (
	NotRegistered State = "NOT_REGISTERED"
	Registered    State = "REGISTERED"
)

// Outcome is the result of a Register call.
type Outcome struct {
	State State
	// Appended is true when this call added the entry.
	Appended bool
}

// RegistrationError reports a failed registry read or write.
type RegistrationError struct {
	Path  string
	Op    string
	Cause error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// Registrar moves a binary from NOT_REGISTERED to REGISTERED. Registering
// an already registered binary is a no-op.
type Registrar struct {
	registry ShellRegistry
	logger   config.Logger
}

// NewRegistrar creates a registrar over registry.
func NewRegistrar(registry ShellRegistry, logger config.Logger) *Registrar {
	return &Registrar{registry: registry, logger: config.OrNop(logger)}
}

// Status returns path's current state.
func (r *Registrar) Status(ctx context.Context, path string) (State, error) {
	if err := ValidateEntry(path); err != nil {
		return NotRegistered, &RegistrationError{Path: path, Op: "validate", Cause: err}
	}
	ok, err := r.registry.Contains(ctx, path)
	if err != nil {
		return NotRegistered, &RegistrationError{Path: path, Op: "check", Cause: err}
	}
	if ok {
		return Registered, nil
	}
	return NotRegistered, nil
}

// Register ensures path is registered.
func (r *Registrar) Register(ctx context.Context, path string) (Outcome, error) {
	state, err := r.Status(ctx, path)
	if err != nil {
		return Outcome{State: state}, err
	}
	if state == Registered {
		r.logger.Debug("shell already registered", "path", path)
		return Outcome{State: Registered}, nil
	}

	if err := r.registry.Append(ctx, path); err != nil {
		return Outcome{State: NotRegistered}, &RegistrationError{Path: path, Op: "append", Cause: err}
	}
	r.logger.Info("registered shell", "path", path)
	return Outcome{State: Registered, Appended: true}, nil
}

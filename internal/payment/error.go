package payment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("payment transaction not found")
	ErrConflict   = errors.New("payment reference already exists")
	ErrGateway    = errors.New("payment gateway error")
)

// GatewayError is returned by every Gateway variant when the provider call
// fails or answers with a non-success envelope. errors.Is(err, ErrGateway)
// holds for it.
type GatewayError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (http %d): %s", e.Provider, e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Op, msg)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

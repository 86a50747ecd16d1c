package engine

import (
	"errors"
	"fmt"
)

// Error kinds returned by the controller. Test with errors.Is.
var (
	ErrNotFound             = errors.New("record not found")
	ErrOutOfRange           = errors.New("list index out of range")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrGateway              = errors.New("gateway failure")
	ErrValidationPartial    = errors.New("validation returned a partial result")
	ErrSuperseded           = errors.New("superseded by a newer request")
)

// OpError records the operation and target id of a failed call.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// classify maps a gateway error onto the engine's kinds. Anything that is
// not already a known kind becomes ErrGateway, keeping the cause in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrGateway):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
}

func opError(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, ID: id, Err: err}
}

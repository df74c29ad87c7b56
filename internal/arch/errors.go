package arch

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration error detected before
// graph construction starts.
var ErrInvalidConfig = errors.New("invalid architecture config")

// UnsupportedActivationError reports an activation kind the dispatcher does not know.
type UnsupportedActivationError struct {
	Kind string
}

func (e *UnsupportedActivationError) Error() string {
	return fmt.Sprintf("unsupported activation %q", e.Kind)
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

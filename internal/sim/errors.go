package sim

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by lifecycle operations on a closed environment.
var ErrClosed = errors.New("environment is closed")

// ConfigError reports an invalid environment configuration. Construction
// and reconfiguration errors are fatal: no partially built environment is
// ever returned.
type ConfigError struct {
	Field  string
	Detail string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("environment config %s: %s", e.Field, e.Detail)
}

// ActionTypeError reports a malformed action payload.
type ActionTypeError struct {
	Detail string
}

func (e *ActionTypeError) Error() string {
	return "malformed action: " + e.Detail
}

// UnimplementedHookError reports that an extension hook required by the
// active configuration was not provided by the concrete task.
type UnimplementedHookError struct {
	Hook string
}

func (e *UnimplementedHookError) Error() string {
	return fmt.Sprintf("task hook %s is not implemented", e.Hook)
}

package similar

import (
	"fmt"

	"vibechain/internal/core"
)

// ServiceError is a failure reported by, or while talking to, a similarity service.
// Transient errors match core.ErrTransient under errors.Is.
type ServiceError struct {
	Provider   string
	StatusCode int
	// Code is the service's own error code, when it reports one.
	Code      int
	Message   string
	Transient bool
	Err       error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s error %d: %s", e.Provider, e.Code, msg)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s HTTP %d: %s", e.Provider, e.StatusCode, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, msg)
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return target == core.ErrTransient && e.Transient
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(status int) bool {
	return status == 429 || status >= 500
}

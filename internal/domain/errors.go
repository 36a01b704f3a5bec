package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrTransientCall   = errors.New("transient call failure")
	ErrSchemaViolation = errors.New("schema violation")
	ErrJobBusy         = errors.New("job busy")
	ErrJobNotReady     = errors.New("job not ready")
)

// StageError is terminal for a stage within a run: the adapter exhausted its
// attempts. It carries the last raw model output and the validation
// diagnostics so a failure is diagnosable from the status endpoint alone.
type StageError struct {
	Stage       string
	RawOutput   string
	Diagnostics []string
	Err         error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
	if len(e.Diagnostics) > 0 {
		msg += " (" + strings.Join(e.Diagnostics, "; ") + ")"
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Err }

package exam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound          = errors.New("exam not found")
	ErrVersionConflict   = errors.New("exam was modified concurrently")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminalStatus    = errors.New("exam is completed or cancelled")
	ErrClassNotAssigned  = errors.New("class is not assigned to this teacher")
	ErrEmptySource       = errors.New("source class has no routine to copy")
)

// ResolutionWarning records a catalog reference that could not be resolved.
// The raw id is kept in place of the name.
type ResolutionWarning struct {
	Kind string `json:"kind"` // class, subject, academic_year, assessment_category
	ID   string `json:"id"`
}

func (w ResolutionWarning) String() string {
	return fmt.Sprintf("unresolved %s reference %q", w.Kind, w.ID)
}

// BatchError reports the targets of a batch that failed. Completed writes are kept.
type BatchError struct {
	Attempted int
	Failed    map[string]error // by target id
}

func NewBatchError(attempted int) *BatchError {
	return &BatchError{Attempted: attempted, Failed: make(map[string]error)}
}

func (err *BatchError) Add(target string, cause error) {
	err.Failed[target] = cause
}

// ErrorOrNil returns nil when nothing failed.
func (err *BatchError) ErrorOrNil() error {
	if err == nil || len(err.Failed) == 0 {
		return nil
	}
	return err
}

func (err *BatchError) Error() string {
	targets := make([]string, 0, len(err.Failed))
	for t := range err.Failed {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	msgs := make([]string, 0, len(targets))
	for _, t := range targets {
		msgs = append(msgs, t+": "+err.Failed[t].Error())
	}
	return fmt.Sprintf("%d of %d operations failed (%s)", len(err.Failed), err.Attempted, strings.Join(msgs, "; "))
}

// IsBatchError reports whether the cause of err is a *BatchError.
func IsBatchError(err error) (*BatchError, bool) {
	berr, ok := errors.Cause(err).(*BatchError)
	return berr, ok
}

package offload

import (
	"errors"
	"fmt"
)

// CorrelatedError exposes the correlation id of the remote computation an
// error belongs to.
type CorrelatedError interface {
	error
	Unwrap() error
	CorrelationID() uint64
}

type correlatedError struct {
	err error
	id  uint64
}

func newCorrelatedError(err error, id uint64) error {
	if err == nil {
		return nil
	}
	return &correlatedError{err: err, id: id}
}

func (e *correlatedError) Error() string         { return e.err.Error() }
func (e *correlatedError) Unwrap() error         { return e.err }
func (e *correlatedError) CorrelationID() uint64 { return e.id }

func (e *correlatedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "compute(correlationId=%d): %+v", e.id, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractCorrelationID returns the correlation id carried by err if present.
func ExtractCorrelationID(err error) (uint64, bool) {
	var ce CorrelatedError
	if errors.As(err, &ce) {
		return ce.CorrelationID(), true
	}
	return 0, false
}

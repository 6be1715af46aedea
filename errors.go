package offload

import "errors"

const Namespace = "offload"

var (
	ErrNotReady         = errors.New(Namespace + ": no initialized engine")
	ErrOverloaded       = errors.New(Namespace + ": too many requests waiting")
	ErrInitFailed       = errors.New(Namespace + ": engine initialization failed")
	ErrRemoteFailure    = errors.New(Namespace + ": remote computation failed")
	ErrProtocolMismatch = errors.New(Namespace + ": unexpected reply")
	ErrReplyTimeout     = errors.New(Namespace + ": no reply within timeout")
	ErrContextDiscarded = errors.New(Namespace + ": execution context discarded")
	ErrInvalidConfig    = errors.New(Namespace + ": invalid configuration")
)

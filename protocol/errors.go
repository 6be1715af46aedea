package protocol

import "errors"

const Namespace = "protocol"

var (
	ErrNotInitialized  = errors.New(Namespace + ": engine is not initialized")
	ErrEngineDiscarded = errors.New(Namespace + ": engine discarded by re-initialization")
	ErrUnknownCommand  = errors.New(Namespace + ": unknown command")
	ErrNilFactory      = errors.New(Namespace + ": engine factory is nil")
	ErrTerminated      = errors.New(Namespace + ": executor terminated")
	ErrMalformed       = errors.New(Namespace + ": malformed message")
)

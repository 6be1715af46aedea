// Package engine defines the stateful computation engine driven by offload.
package engine

//go:generate mockgen -source=engine.go -destination=../internal/mocks/engine.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrPanicked is returned by Call when the engine panics.
var ErrPanicked = errors.New("engine: call panicked")

// Engine is a stateful, expensive computation. Implementations do not need to be
// safe for concurrent use: callers serialize Init and Compute.
//
// Config, params and results are opaque to offload. When the engine runs in a
// child process they cross the boundary as JSON, so the engine sees their decoded
// form (maps, float64 numbers, strings, slices).
type Engine interface {
	// Init prepares the engine (loads a model, allocates buffers, ...).
	Init(ctx context.Context, config any) error
	// Compute runs one computation. Ownership of payload passes to the engine.
	Compute(ctx context.Context, params any, payload []byte) (any, error)
}

// Factory constructs a fresh Engine. Every initialization uses a new instance.
type Factory func() Engine

// Funcs adapts a pair of functions to Engine. A nil InitFn is a no-op.
type Funcs struct {
	InitFn    func(ctx context.Context, config any) error
	ComputeFn func(ctx context.Context, params any, payload []byte) (any, error)
}

func (f Funcs) Init(ctx context.Context, config any) error {
	if f.InitFn == nil {
		return nil
	}
	return f.InitFn(ctx, config)
}

func (f Funcs) Compute(ctx context.Context, params any, payload []byte) (any, error) {
	return f.ComputeFn(ctx, params, payload)
}

// ComputeFunc adapts a compute function to an Engine with a no-op Init.
func ComputeFunc(fn func(ctx context.Context, params any, payload []byte) (any, error)) Engine {
	return Funcs{ComputeFn: fn}
}

// Call runs fn, converting a panic into an error wrapping ErrPanicked.
func Call[R any](fn func() (R, error)) (result R, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero R
			result = zero
			err = fmt.Errorf("%w: %v", ErrPanicked, p)
		}
	}()
	return fn()
}

// Discard releases e if it holds resources (implements io.Closer).
func Discard(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

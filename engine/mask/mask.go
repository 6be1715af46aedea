// Package mask implements a small demonstration engine producing binary masks.
//
// Every payload byte at or above the threshold becomes 255, every other byte 0.
package mask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ygrebnov/offload/engine"
)

// Name identifies the engine in worker binaries.
const Name = "mask"

var (
	ErrNotInitialized = errors.New(Name + ": engine is not initialized")
	ErrInvalidConfig  = errors.New(Name + ": invalid configuration")
)

// Config configures the engine at Init.
type Config struct {
	Threshold uint8 `json:"threshold"`
	Invert    bool  `json:"invert,omitempty"`
}

// Params optionally override the configured threshold per call.
type Params struct {
	Threshold *uint8 `json:"threshold,omitempty"`
}

// Result is the outcome of one Compute call.
type Result struct {
	Mask    []byte `json:"mask"`
	Covered int    `json:"covered"`
}

type maskEngine struct {
	cfg   Config
	ready bool
}

// New returns a fresh, uninitialized mask engine.
func New() engine.Engine { return &maskEngine{} }

// Factory is an engine.Factory for the mask engine.
var Factory engine.Factory = New

func (e *maskEngine) Init(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var cfg Config
	if err := convert(config, &cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.cfg = cfg
	e.ready = true
	return nil
}

func (e *maskEngine) Compute(ctx context.Context, params any, payload []byte) (any, error) {
	if !e.ready {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p Params
	if err := convert(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	threshold := e.cfg.Threshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}

	// payload is owned by the engine: reuse it as the output buffer.
	covered := 0
	for i, b := range payload {
		on := b >= threshold
		if e.cfg.Invert {
			on = !on
		}
		if on {
			payload[i] = 255
			covered++
		} else {
			payload[i] = 0
		}
	}

	return Result{Mask: payload, Covered: covered}, nil
}

// convert accepts either the typed value or any JSON-shaped value (as decoded
// on the far side of a process boundary) and fills out.
func convert(in any, out any) error {
	if in == nil {
		return nil
	}
	switch dst := out.(type) {
	case *Config:
		switch v := in.(type) {
		case Config:
			*dst = v
			return nil
		case *Config:
			*dst = *v
			return nil
		}
	case *Params:
		switch v := in.(type) {
		case Params:
			*dst = v
			return nil
		case *Params:
			*dst = *v
			return nil
		}
	}
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

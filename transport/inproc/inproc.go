// Package inproc hosts execution contexts on dedicated goroutines.
//
// Commands and replies travel over channels and payload slices are handed over
// without copying; nothing else is shared between the caller and the context.
package inproc

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/offload/engine"
	"github.com/ygrebnov/offload/protocol"
	"github.com/ygrebnov/offload/transport"
)

const defaultBuffer = 16

// Transport spawns goroutine-hosted executors.
type Transport struct {
	factory engine.Factory
	logger  logrus.FieldLogger
	buffer  int
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger handed to spawned executors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithBuffer sets the command and reply channel buffer sizes.
func WithBuffer(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.buffer = n
		}
	}
}

// New returns a Transport whose contexts build engines with factory.
func New(factory engine.Factory, opts ...Option) *Transport {
	t := &Transport{factory: factory, buffer: defaultBuffer}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Spawn starts a new executor goroutine.
func (t *Transport) Spawn(ctx context.Context) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.factory == nil {
		return nil, protocol.ErrNilFactory
	}

	var xopts []protocol.ExecutorOption
	if t.logger != nil {
		xopts = append(xopts, protocol.WithLogger(t.logger))
	}
	x := protocol.NewExecutor(t.factory, xopts...)

	runCtx, cancel := context.WithCancel(context.Background())
	ep := &endpoint{
		commands: make(chan protocol.Command, t.buffer),
		replies:  make(chan protocol.Reply, t.buffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(ep.done)
		_ = x.Serve(runCtx, ep.commands, ep.replies)
	}()
	return ep, nil
}

type endpoint struct {
	commands chan protocol.Command
	replies  chan protocol.Reply
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (e *endpoint) Send(ctx context.Context, cmd protocol.Command) error {
	select {
	case <-e.done:
		return transport.ErrTerminated
	default:
	}
	select {
	case e.commands <- cmd:
		return nil
	case <-e.done:
		return transport.ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *endpoint) Replies() <-chan protocol.Reply { return e.replies }

// Terminate cancels the executor and waits for its serve loop to exit.
func (e *endpoint) Terminate() error {
	e.once.Do(func() {
		e.cancel()
		<-e.done
	})
	return nil
}

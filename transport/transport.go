// Package transport defines how out-of-line execution contexts are spawned and
// reached. Implementations live in the inproc and process subpackages.
package transport

import (
	"context"
	"errors"

	"github.com/ygrebnov/offload/protocol"
)

var (
	ErrTerminated = errors.New("transport: execution context terminated")
	ErrSpawn      = errors.New("transport: failed to spawn execution context")
)

// Transport spawns independent execution contexts.
type Transport interface {
	// Spawn starts a new execution context. The context lives until Terminate,
	// independently of ctx, which only bounds the start-up.
	Spawn(ctx context.Context) (Endpoint, error)
}

// Endpoint is the handle of one spawned execution context.
type Endpoint interface {
	// Send delivers cmd to the context. Ownership of cmd.Payload passes to the
	// endpoint; implementations transfer it without copying where they can.
	Send(ctx context.Context, cmd protocol.Command) error
	// Replies streams replies from the context. The channel is closed once the
	// context has ended.
	Replies() <-chan protocol.Reply
	// Terminate stops the context. It is idempotent.
	Terminate() error
}

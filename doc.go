// Package offload serializes access to a stateful, expensive engine that runs
// either in a separate execution context (Remote) or in the caller's
// goroutine (Local).
//
// Lifecycle
//   - New(opts...): builds a Manager. WithEngine supplies the local engine,
//     WithTransport the way to spawn remote executors; at least one is required.
//   - Init(ctx, config, initOpts...): discards the previous execution context
//     and initializes a fresh engine. The mode is chosen by package policy
//     from the detected capabilities and the Local / RemoteWhenUnsupported
//     options.
//   - Compute(ctx, params, payload): runs one computation.
//   - Terminate(ctx): discards the execution context; Init may be called again.
//
// Admission
// Init, Compute and Terminate take a ticket from a FIFO hand-off queue and
// give it back on return, so at most one of them runs at a time and waiters
// proceed in arrival order. Compute fails fast with ErrOverloaded when more
// than the queue threshold (default 100) callers are already waiting.
//
// Defaults
// Unless overridden, the following defaults apply:
//   - Capabilities: policy.Detect()
//   - QueueThreshold: 100
//   - ReplyTimeout: 0 (wait until ctx ends)
//   - Payloads: handed over without copying
//   - Logger: discards output
//   - Metrics: metrics.NoopProvider
//
// Remote replies
// Each computation carries a correlation id; replies are routed to their
// caller by id and replies nobody awaits are logged and dropped. Errors
// belonging to a computation implement CorrelatedError.
package offload

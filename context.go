package offload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/offload/engine"
	"github.com/ygrebnov/offload/policy"
	"github.com/ygrebnov/offload/protocol"
	"github.com/ygrebnov/offload/transport"
)

// initCorrelationID is reserved for the INIT exchange; computations start at 1.
const initCorrelationID uint64 = 0

// executionContext is where an initialized engine lives. Calls are serialized
// by the Manager's ticket; implementations need not be safe for concurrent use.
type executionContext interface {
	id() string
	mode() policy.Mode
	compute(ctx context.Context, params any, payload []byte) (any, error)
	// lost reports a non-nil error once the context can no longer compute.
	lost() error
	close()
}

// localContext runs the engine on the caller's goroutine.
type localContext struct {
	uid    string
	eng    engine.Engine
	logger logrus.FieldLogger
}

func newLocalContext(ctx context.Context, factory engine.Factory, config any, logger logrus.FieldLogger) (*localContext, error) {
	if factory == nil {
		return nil, errorc.With(ErrInitFailed, errorc.String("", "no local engine configured"))
	}
	eng := factory()
	if eng == nil {
		return nil, errorc.With(ErrInitFailed, errorc.String("", "engine factory returned nil"))
	}
	if _, err := engine.Call(func() (struct{}, error) { return struct{}{}, eng.Init(ctx, config) }); err != nil {
		_ = engine.Discard(eng)
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	uid := uuid.NewString()
	return &localContext{uid: uid, eng: eng, logger: logger.WithField("context_id", uid)}, nil
}

func (c *localContext) id() string        { return c.uid }
func (c *localContext) mode() policy.Mode { return policy.Local }

func (c *localContext) compute(ctx context.Context, params any, payload []byte) (any, error) {
	return engine.Call(func() (any, error) { return c.eng.Compute(ctx, params, payload) })
}

func (c *localContext) lost() error { return nil }

func (c *localContext) close() {
	if err := engine.Discard(c.eng); err != nil {
		c.logger.WithError(err).Warn("failed to release engine")
	}
}

// remoteContext drives an executor behind a transport endpoint.
type remoteContext struct {
	uid         string
	ep          transport.Endpoint
	disp        *dispatcher
	lc          *lifecycleCoordinator
	ids         *atomic.Uint64
	timeout     time.Duration
	copyPayload bool
	logger      logrus.FieldLogger
}

// remoteOptions carries the Manager settings a remote context needs.
type remoteOptions struct {
	ids         *atomic.Uint64
	timeout     time.Duration
	copyPayload bool
	logger      logrus.FieldLogger
	inst        *instruments
}

// newRemoteContext spawns an execution context and initializes its engine.
// The INIT exchange uses the reserved correlation id.
func newRemoteContext(ctx context.Context, t transport.Transport, config any, o remoteOptions) (*remoteContext, error) {
	if t == nil {
		return nil, errorc.With(ErrInitFailed, errorc.String("", "no transport configured"))
	}
	ep, err := t.Spawn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	uid := uuid.NewString()
	log := o.logger.WithField("context_id", uid)
	disp := newDispatcher(ep.Replies(), log, o.inst.unmatched)
	rc := &remoteContext{
		uid:         uid,
		ep:          ep,
		disp:        disp,
		ids:         o.ids,
		timeout:     o.timeout,
		copyPayload: o.copyPayload,
		logger:      log,
	}
	rc.lc = newLifecycleCoordinator(
		ep.Terminate,
		func() { <-disp.done },
		func(err error) { log.WithError(err).Warn("failed to terminate execution context") },
		func() { log.Debug("execution context terminated") },
	)
	go disp.run()

	ch := disp.expect(initCorrelationID)
	if err := ep.Send(ctx, protocol.Init(config)); err != nil {
		rc.close()
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	reply, err := rc.await(ctx, initCorrelationID, ch)
	if err != nil {
		rc.close()
		return nil, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	switch reply.Status {
	case protocol.StatusInitialized:
		log.Debug("execution context initialized")
		return rc, nil
	case protocol.StatusError:
		rc.close()
		return nil, errorc.With(ErrInitFailed, errorc.String("detail", reply.Detail))
	default:
		rc.close()
		return nil, fmt.Errorf("%w: %w", ErrInitFailed,
			errorc.With(ErrProtocolMismatch, errorc.String("status", string(reply.Status))))
	}
}

func (c *remoteContext) id() string        { return c.uid }
func (c *remoteContext) mode() policy.Mode { return policy.Remote }

func (c *remoteContext) compute(ctx context.Context, params any, payload []byte) (any, error) {
	id := c.ids.Add(1)
	if c.copyPayload && payload != nil {
		payload = bytes.Clone(payload)
	}

	ch := c.disp.expect(id)
	if err := c.ep.Send(ctx, protocol.Compute(id, params, payload)); err != nil {
		c.disp.forget(id)
		if errors.Is(err, transport.ErrTerminated) {
			err = fmt.Errorf("%w: %w", ErrContextDiscarded, err)
		}
		return nil, newCorrelatedError(err, id)
	}

	reply, err := c.await(ctx, id, ch)
	if err != nil {
		return nil, newCorrelatedError(err, id)
	}
	switch reply.Status {
	case protocol.StatusComputed:
		return reply.Result, nil
	case protocol.StatusError:
		return nil, newCorrelatedError(errorc.With(ErrRemoteFailure, errorc.String("detail", reply.Detail)), id)
	default:
		return nil, newCorrelatedError(errorc.With(ErrProtocolMismatch, errorc.String("status", string(reply.Status))), id)
	}
}

// await blocks until the reply for id arrives, the context ends, the reply
// timeout elapses or the execution context goes away. Abandoned ids are
// forgotten so that their late replies are dropped as unmatched.
func (c *remoteContext) await(ctx context.Context, id uint64, ch <-chan protocol.Reply) (protocol.Reply, error) {
	var expired <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-ch:
		return r, nil
	case <-c.disp.done:
		select {
		case r := <-ch:
			return r, nil
		default:
		}
		return protocol.Reply{}, ErrContextDiscarded
	case <-ctx.Done():
		c.disp.forget(id)
		return protocol.Reply{}, ctx.Err()
	case <-expired:
		c.disp.forget(id)
		c.logger.WithField("correlation_id", strconv.FormatUint(id, 10)).Warn("reply timed out")
		return protocol.Reply{}, errorc.With(ErrReplyTimeout, errorc.String("timeout", c.timeout.String()))
	}
}

func (c *remoteContext) lost() error {
	select {
	case <-c.disp.done:
		return ErrContextDiscarded
	default:
		return nil
	}
}

func (c *remoteContext) close() { c.lc.Close() }

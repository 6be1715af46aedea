package offload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/offload/policy"
	"github.com/ygrebnov/offload/queue"
)

// Ticket is the token granting exclusive use of the execution context.
// It is seeded with 0 and released as t+1.
type Ticket uint64

// Manager serializes initialization and computations of an engine running
// either in the caller's goroutine or in a separate execution context.
// Methods are safe for concurrent use; at most one Init, Compute or Terminate
// is in progress at any time and waiters are served in arrival order.
type Manager struct {
	// noCopy prevents accidental copying of the manager.
	//go:nocopy
	nc noCopy

	config *config
	caps   policy.Capabilities
	logger logrus.FieldLogger
	inst   *instruments

	tickets *queue.Queue[Ticket]

	// correlation ids for remote computations; never reused across contexts
	ids atomic.Uint64

	// current and initErr are written by the ticket holder only; mu lets
	// observers such as Mode read them without a ticket.
	mu      sync.RWMutex
	current executionContext
	initErr error
}

// noCopy is a vet-recognized marker to discourage copying types with this field embedded.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// New creates a Manager using functional options.
// At least one of WithEngine or WithTransport is required.
func New(opts ...Option) (*Manager, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	caps := policy.Detect()
	if cfg.Capabilities != nil {
		caps = *cfg.Capabilities
	}
	if cfg.Transport == nil {
		caps.RemoteSupported = false
	}

	m := &Manager{
		config:  &cfg,
		caps:    caps,
		logger:  cfg.Logger,
		inst:    newInstruments(cfg.Metrics),
		tickets: queue.New[Ticket](),
	}
	m.tickets.Enqueue(0)
	return m, nil
}

func (m *Manager) acquire(ctx context.Context) (Ticket, error) {
	m.inst.waiters.Add(1)
	defer m.inst.waiters.Add(-1)
	return m.tickets.Dequeue(ctx)
}

func (m *Manager) release(t Ticket) { m.tickets.Enqueue(t + 1) }

// Init discards the current execution context, if any, and initializes a new
// engine with config. The execution mode follows the detected capabilities
// and opts. A failure is returned to this caller and makes later computations
// fail with ErrNotReady until the next successful Init.
func (m *Manager) Init(ctx context.Context, config any, opts ...InitOption) error {
	var prefs policy.Preferences
	for _, opt := range opts {
		if opt != nil {
			opt(&prefs)
		}
	}
	mode := policy.Select(m.caps, prefs)

	t, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer m.release(t)

	m.discard()
	m.inst.inits.Add(1)
	log := m.logger.WithField("mode", mode)

	var ec executionContext
	switch mode {
	case policy.Remote:
		ec, err = newRemoteContext(ctx, m.config.Transport, config, remoteOptions{
			ids:         &m.ids,
			timeout:     m.config.ReplyTimeout,
			copyPayload: m.config.CopyPayload,
			logger:      log,
			inst:        m.inst,
		})
	default:
		ec, err = newLocalContext(ctx, m.config.EngineFactory, config, log)
	}
	if err != nil {
		m.inst.initFailures.Add(1)
		m.set(nil, err)
		log.WithError(err).Warn("engine initialization failed")
		return err
	}

	m.set(ec, nil)
	log.WithField("context_id", ec.id()).Debug("engine initialized")
	return nil
}

// Compute runs one computation on the initialized engine and returns its
// result. It fails fast with ErrOverloaded when more callers than the
// configured threshold are already waiting.
//
// Ownership of payload passes to the engine. With WithPayloadCopy remote
// computations receive a copy instead.
// When ctx ends while a remote computation is in flight, Compute returns
// ctx.Err() and the eventual reply is discarded.
func (m *Manager) Compute(ctx context.Context, params any, payload []byte) (any, error) {
	if n := m.tickets.Waiting(); n > m.config.QueueThreshold {
		m.inst.overloaded.Add(1)
		return nil, errorc.With(ErrOverloaded, errorc.String("waiting", strconv.Itoa(n)))
	}

	t, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer m.release(t)

	m.mu.RLock()
	ec, initErr := m.current, m.initErr
	m.mu.RUnlock()

	if ec != nil {
		if err := ec.lost(); err != nil {
			m.drop(err)
			ec, initErr = nil, err
		}
	}
	if ec == nil {
		if initErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotReady, initErr)
		}
		return nil, ErrNotReady
	}

	m.inst.computes.Add(1)
	start := time.Now()
	res, err := ec.compute(ctx, params, payload)
	m.inst.duration.Record(time.Since(start).Seconds())
	if err != nil {
		m.inst.computeErrors.Add(1)
		if errors.Is(err, ErrContextDiscarded) {
			m.drop(err)
		}
		return nil, err
	}
	return res, nil
}

// Terminate discards the current execution context. The Manager can be
// initialized again afterwards.
func (m *Manager) Terminate(ctx context.Context) error {
	t, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer m.release(t)

	m.discard()
	m.set(nil, nil)
	return nil
}

// Mode reports the execution mode of the current context; ok is false when
// no engine is initialized or the execution context was lost.
func (m *Manager) Mode() (mode policy.Mode, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.current.lost() != nil {
		return policy.Local, false
	}
	return m.current.mode(), true
}

// discard closes the current context. The caller holds the ticket.
func (m *Manager) discard() {
	m.mu.RLock()
	ec := m.current
	m.mu.RUnlock()
	if ec == nil {
		return
	}
	m.set(nil, nil)
	ec.close()
	m.logger.WithFields(logrus.Fields{
		"mode":       ec.mode(),
		"context_id": ec.id(),
	}).Debug("execution context discarded")
}

// drop discards a context that went away and records why, so that later
// computations fail with ErrNotReady. The caller holds the ticket.
func (m *Manager) drop(cause error) {
	m.discard()
	m.set(nil, cause)
	m.logger.WithError(cause).Warn("execution context lost")
}

func (m *Manager) set(ec executionContext, initErr error) {
	m.mu.Lock()
	m.current, m.initErr = ec, initErr
	m.mu.Unlock()
}

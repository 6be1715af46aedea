package protocol

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/offload/engine"
)

// State is the executor state.
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
	Busy
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Executor serves INIT and COMPUTE commands inside an execution context.
// It owns exactly one engine at a time; every INIT replaces it with a fresh
// instance from the factory.
//
// An Executor serves a single command stream: call Serve (or ServeStream) once.
type Executor struct {
	factory engine.Factory
	logger  logrus.FieldLogger

	mu    sync.Mutex
	state State
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l logrus.FieldLogger) ExecutorOption {
	return func(x *Executor) {
		if l != nil {
			x.logger = l
		}
	}
}

// NewExecutor returns an Executor creating engines with factory.
func NewExecutor(factory engine.Factory, opts ...ExecutorOption) *Executor {
	x := &Executor{factory: factory, logger: discardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(x)
		}
	}
	return x
}

// State returns a snapshot of the executor state.
func (x *Executor) State() State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

func (x *Executor) setState(s State) {
	x.mu.Lock()
	prev := x.state
	x.state = s
	x.mu.Unlock()
	if prev != s {
		x.logger.WithFields(logrus.Fields{"from": prev.String(), "to": s.String()}).Debug("executor state changed")
	}
}

// completion reports the outcome of an engine call started by the serve loop.
type completion struct {
	gen    uint64
	init   bool
	id     uint64
	result any
	err    error
}

// session is the serve-loop state. It is only touched by the Serve goroutine.
type session struct {
	x    *Executor
	ctx  context.Context
	out  chan<- Reply
	done chan struct{}

	completions chan completion

	gen       uint64
	eng       engine.Engine
	engCtx    context.Context
	engCancel context.CancelFunc
	backlog   []Command
}

// Serve processes commands from in and writes replies to out until ctx is done
// or in is closed. It then moves to Terminated and closes out.
// Terminated is final: a later Serve returns ErrTerminated without reading in.
//
// Commands arriving while the engine is initializing or busy are queued in order.
func (x *Executor) Serve(ctx context.Context, in <-chan Command, out chan<- Reply) error {
	defer close(out)
	if x.State() == Terminated {
		return ErrTerminated
	}
	if x.factory == nil {
		x.setState(Terminated)
		return ErrNilFactory
	}

	s := &session{
		x:           x,
		ctx:         ctx,
		out:         out,
		done:        make(chan struct{}),
		completions: make(chan completion),
	}
	defer s.terminate()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			if !s.handle(cmd) {
				return nil
			}
		case c := <-s.completions:
			if !s.complete(c) {
				return nil
			}
		}
	}
}

// handle dispatches one command. It returns false when the loop must stop.
func (s *session) handle(cmd Command) bool {
	log := s.x.logger.WithFields(logrus.Fields{"command": string(cmd.Kind), "correlation_id": cmd.CorrelationID})

	switch cmd.Kind {
	case CommandInit:
		log.Debug("initializing engine")
		return s.init(cmd.Config)

	case CommandCompute:
		switch s.x.State() {
		case Uninitialized:
			log.Warn("compute before initialization")
			return s.emit(Failed(cmd.CorrelationID, ErrNotInitialized.Error()))
		case Initializing, Busy:
			s.backlog = append(s.backlog, cmd)
			return true
		case Ready:
			s.compute(cmd)
			return true
		default:
			return false
		}

	default:
		log.Warn("unknown command")
		return s.emit(Failed(cmd.CorrelationID, ErrUnknownCommand.Error()))
	}
}

// init discards the current engine unconditionally and initializes a new one.
func (s *session) init(config any) bool {
	if !s.discard(ErrEngineDiscarded) {
		return false
	}

	s.gen++
	s.eng = s.x.factory()
	s.engCtx, s.engCancel = context.WithCancel(s.ctx)
	s.x.setState(Initializing)

	gen, eng, engCtx := s.gen, s.eng, s.engCtx
	go func() {
		_, err := engine.Call(func() (struct{}, error) { return struct{}{}, eng.Init(engCtx, config) })
		s.deliver(completion{gen: gen, init: true, err: err})
	}()
	return true
}

// compute starts cmd on the current engine.
func (s *session) compute(cmd Command) {
	s.x.setState(Busy)

	gen, eng, engCtx := s.gen, s.eng, s.engCtx
	go func() {
		res, err := engine.Call(func() (any, error) { return eng.Compute(engCtx, cmd.Params, cmd.Payload) })
		s.deliver(completion{gen: gen, id: cmd.CorrelationID, result: res, err: err})
	}()
}

func (s *session) deliver(c completion) {
	select {
	case s.completions <- c:
	case <-s.done:
	}
}

// complete applies an engine call outcome. It returns false when the loop must stop.
func (s *session) complete(c completion) bool {
	if c.gen != s.gen {
		s.x.logger.WithFields(logrus.Fields{
			"correlation_id": c.id,
			"generation":     c.gen,
		}).Debug("ignoring completion from discarded engine")
		if c.init {
			return true
		}
		return s.emit(Failed(c.id, ErrEngineDiscarded.Error()))
	}

	if c.init {
		if c.err != nil {
			s.x.logger.WithError(c.err).Warn("engine initialization failed")
			if !s.discard(ErrNotInitialized) {
				return false
			}
			s.x.setState(Uninitialized)
			return s.emit(Failed(0, c.err.Error()))
		}
		s.x.setState(Ready)
		if !s.emit(Initialized()) {
			return false
		}
		return s.next()
	}

	s.x.setState(Ready)
	reply := Computed(c.id, c.result)
	if c.err != nil {
		reply = Failed(c.id, c.err.Error())
	}
	if !s.emit(reply) {
		return false
	}
	return s.next()
}

// next starts the oldest queued compute, if any.
func (s *session) next() bool {
	if len(s.backlog) == 0 {
		return true
	}
	cmd := s.backlog[0]
	s.backlog = s.backlog[1:]
	s.compute(cmd)
	return true
}

// discard drops the current engine and fails queued computes with reason.
func (s *session) discard(reason error) bool {
	if s.engCancel != nil {
		s.engCancel()
		s.engCancel = nil
	}
	if s.eng != nil {
		if err := engine.Discard(s.eng); err != nil {
			s.x.logger.WithError(err).Warn("failed to release discarded engine")
		}
		s.eng = nil
	}

	backlog := s.backlog
	s.backlog = nil
	for _, cmd := range backlog {
		if !s.emit(Failed(cmd.CorrelationID, reason.Error())) {
			return false
		}
	}
	return true
}

func (s *session) emit(r Reply) bool {
	select {
	case s.out <- r:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *session) terminate() {
	close(s.done)
	if s.engCancel != nil {
		s.engCancel()
	}
	if s.eng != nil {
		if err := engine.Discard(s.eng); err != nil {
			s.x.logger.WithError(err).Warn("failed to release engine")
		}
		s.eng = nil
	}
	s.x.setState(Terminated)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

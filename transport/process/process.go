// Package process hosts execution contexts in child processes.
//
// The child speaks the newline-delimited JSON protocol on stdin/stdout (see
// protocol.ServeStream and cmd/offload-worker). Payloads are copied by encoding.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ygrebnov/offload/protocol"
	"github.com/ygrebnov/offload/transport"
)

const (
	defaultGracePeriod = 2 * time.Second
	defaultBuffer      = 16
)

// Transport spawns child processes running an executor.
type Transport struct {
	path   string
	args   []string
	env    []string
	grace  time.Duration
	logger logrus.FieldLogger
}

// Option configures a Transport.
type Option func(*Transport)

// WithArgs sets the child process arguments.
func WithArgs(args ...string) Option {
	return func(t *Transport) { t.args = append([]string(nil), args...) }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment of the child.
func WithEnv(env ...string) Option {
	return func(t *Transport) { t.env = append(t.env, env...) }
}

// WithGracePeriod sets how long Terminate waits for the child to exit after its
// stdin is closed before killing it.
func WithGracePeriod(d time.Duration) Option {
	return func(t *Transport) { t.grace = d }
}

// WithLogger sets the logger receiving the child's stderr lines and lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Transport) { t.logger = l }
}

// New returns a Transport running the executable at path.
func New(path string, opts ...Option) *Transport {
	l := logrus.New()
	l.SetOutput(io.Discard)
	t := &Transport{path: path, grace: defaultGracePeriod, logger: l}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Spawn starts a child process. The process outlives ctx.
func (t *Transport) Spawn(ctx context.Context) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(t.path, t.args...)
	cmd.Env = append(os.Environ(), t.env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", transport.ErrSpawn, t.path, err)
	}

	log := t.logger.WithField("pid", cmd.Process.Pid)
	log.Debug("worker process started")

	ep := &endpoint{
		cmd:     cmd,
		stdin:   stdin,
		enc:     protocol.NewEncoder(stdin),
		replies: make(chan protocol.Reply, defaultBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		grace:   t.grace,
		logger:  log,
	}

	var g errgroup.Group
	g.Go(func() error {
		defer close(ep.replies)
		err := ep.readReplies(stdout)
		// No further replies can be read, so the child is of no use.
		select {
		case <-ep.stop:
		default:
			ep.kill()
		}
		return err
	})
	g.Go(func() error { return ep.forwardStderr(stderr) })

	go func() {
		defer close(ep.done)
		if err := g.Wait(); err != nil {
			log.WithError(err).Warn("worker stream failed")
		}
		// Wait must follow the completion of all pipe reads.
		ep.exitErr = cmd.Wait()
		log.WithError(ep.exitErr).Debug("worker process exited")
	}()

	return ep, nil
}

type endpoint struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	enc     *protocol.Encoder
	replies chan protocol.Reply
	stop    chan struct{}
	done    chan struct{}
	grace   time.Duration
	logger  logrus.FieldLogger

	once    sync.Once
	exitErr error
}

func (e *endpoint) readReplies(r io.Reader) error {
	dec := protocol.NewDecoder(r)
	for {
		reply, err := dec.DecodeReply()
		if errors.Is(err, protocol.ErrMalformed) {
			e.logger.WithError(err).Warn("skipping malformed worker output")
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
		select {
		case e.replies <- reply:
		case <-e.stop:
			return nil
		}
	}
}

func (e *endpoint) forwardStderr(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		e.logger.WithField("stream", "stderr").Debug(sc.Text())
	}
	if err := sc.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Send writes cmd to the child's stdin. When ctx ends first, Send returns
// ctx.Err() and the write carries on in the background; the command may still
// reach the child.
func (e *endpoint) Send(ctx context.Context, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.stop:
		return transport.ErrTerminated
	case <-e.done:
		return transport.ErrTerminated
	default:
	}

	errc := make(chan error, 1)
	go func() { errc <- e.enc.Encode(cmd) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("%w: %w", transport.ErrTerminated, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return transport.ErrTerminated
	}
}

func (e *endpoint) Replies() <-chan protocol.Reply { return e.replies }

// Terminate closes the child's stdin, waits up to the grace period for it to exit,
// then kills it.
func (e *endpoint) Terminate() error {
	e.once.Do(func() {
		close(e.stop)
		_ = e.stdin.Close()

		timer := time.NewTimer(e.grace)
		defer timer.Stop()
		select {
		case <-e.done:
			return
		case <-timer.C:
		}

		e.kill()
		<-e.done
	})
	return nil
}

func (e *endpoint) kill() {
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.WithError(err).Warn("failed to kill worker process")
	}
}

package offload

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/offload/engine"
	"github.com/ygrebnov/offload/metrics"
	"github.com/ygrebnov/offload/policy"
	"github.com/ygrebnov/offload/transport"
)

// config holds Manager configuration.
type config struct {
	// EngineFactory builds the engine used by the local execution path.
	// Default: nil (local path unavailable)
	EngineFactory engine.Factory

	// Transport spawns remote executors. When nil, the remote path is
	// reported as unsupported to the execution policy.
	// Default: nil
	Transport transport.Transport

	// Capabilities overrides environment detection.
	// Default: nil (policy.Detect at construction)
	Capabilities *policy.Capabilities

	// QueueThreshold is the number of waiting callers above which Compute
	// fails fast with ErrOverloaded.
	// Default: 100
	QueueThreshold int

	// ReplyTimeout bounds the wait for a remote reply. Zero waits until the
	// caller's context ends.
	// Default: 0
	ReplyTimeout time.Duration

	// CopyPayload hands remote executors a copy of the payload instead of the
	// caller's buffer.
	// Default: false
	CopyPayload bool

	Logger  logrus.FieldLogger
	Metrics metrics.Provider
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		QueueThreshold: 100,
		ReplyTimeout:   0,
		CopyPayload:    false,
		Logger:         defaultLogger(),
		Metrics:        metrics.NewNoopProvider(),
	}
}

// validateConfig checks that at least one execution path can be built.
func validateConfig(cfg *config) error {
	if cfg.EngineFactory == nil && cfg.Transport == nil {
		return errorc.With(ErrInvalidConfig, errorc.String("", "either WithEngine or WithTransport is required"))
	}
	return nil
}

func defaultLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", Namespace)
}

// Option configures a Manager. Use New(opts...) to construct one.
type Option func(*config) error

// WithEngine sets the factory for engines run on the caller's side.
func WithEngine(f engine.Factory) Option {
	return func(cfg *config) error {
		if f == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithEngine requires a non-nil factory"))
		}
		cfg.EngineFactory = f
		return nil
	}
}

// WithTransport sets the transport used to spawn remote executors.
func WithTransport(t transport.Transport) Option {
	return func(cfg *config) error {
		if t == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithTransport requires a non-nil transport"))
		}
		cfg.Transport = t
		return nil
	}
}

// WithCapabilities overrides environment detection.
func WithCapabilities(c policy.Capabilities) Option {
	return func(cfg *config) error { cfg.Capabilities = &c; return nil }
}

// WithQueueThreshold sets the overload threshold (must be > 0, default 100).
func WithQueueThreshold(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithQueueThreshold requires n > 0"))
		}
		cfg.QueueThreshold = n
		return nil
	}
}

// WithReplyTimeout bounds the wait for each remote reply (zero disables the bound).
func WithReplyTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithReplyTimeout requires d >= 0"))
		}
		cfg.ReplyTimeout = d
		return nil
	}
}

// WithPayloadCopy makes remote computations work on a copy of the payload.
func WithPayloadCopy() Option {
	return func(cfg *config) error { cfg.CopyPayload = true; return nil }
}

// WithLogger sets the logger. Default: a logger discarding output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider. Default: metrics.NoopProvider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// InitOption expresses caller preferences for a single Init.
type InitOption func(*policy.Preferences)

// Local forces the local execution path.
func Local() InitOption {
	return func(p *policy.Preferences) { p.ForceLocal = true }
}

// RemoteWhenUnsupported asks for the remote path even when the environment
// does not report remote support.
func RemoteWhenUnsupported() InitOption {
	return func(p *policy.Preferences) { p.RemoteWhenUnsupported = true }
}

// Command offload-worker hosts an offload executor in a child process. It reads
// newline-delimited JSON commands on stdin and writes replies on stdout; logs go
// to stderr as JSON.
//
// The engine is the threshold mask engine from engine/mask. Set
// OFFLOAD_LOG_LEVEL to debug, info, warn or error (default warn).
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/offload/engine/mask"
	"github.com/ygrebnov/offload/protocol"
)

const envLogLevel = "OFFLOAD_LOG_LEVEL"

func main() {
	logger := newLogger(os.Stderr, parseLogLevel(os.Getenv(envLogLevel)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithFields(logrus.Fields{"pid": os.Getpid(), "engine": mask.Name})
	log.Debug("worker started")

	err := protocol.ServeStream(ctx, os.Stdin, os.Stdout, mask.Factory, protocol.WithLogger(log))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("serve failed")
		stop()
		os.Exit(1)
	}
	log.Debug("worker stopped")
}

func parseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

// newLogger creates a JSON logger writing to w at level.
func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(level)
	return l
}

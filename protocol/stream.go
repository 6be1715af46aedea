package protocol

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ygrebnov/offload/engine"
)

// ServeStream runs an Executor over a newline-delimited JSON stream: commands are
// read from r and replies written to w. It returns when r reaches EOF, ctx is
// done, or writing a reply fails. Lines that do not decode are logged and skipped.
//
// The reader goroutine is not waited for: a blocked read on r cannot be
// interrupted, and the caller owns r's lifecycle.
func ServeStream(ctx context.Context, r io.Reader, w io.Writer, factory engine.Factory, opts ...ExecutorOption) error {
	x := NewExecutor(factory, opts...)

	g, gctx := errgroup.WithContext(ctx)
	in := make(chan Command)
	out := make(chan Reply)

	go func() {
		defer close(in)
		dec := NewDecoder(r)
		for {
			cmd, err := dec.DecodeCommand()
			if errors.Is(err, ErrMalformed) {
				x.logger.WithError(err).Warn("skipping malformed command")
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					x.logger.WithError(err).Error("failed to decode command")
				}
				return
			}
			select {
			case in <- cmd:
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error { return x.Serve(gctx, in, out) })

	g.Go(func() error {
		enc := NewEncoder(w)
		for reply := range out {
			if err := enc.Encode(reply); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

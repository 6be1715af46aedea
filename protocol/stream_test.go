package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/offload/engine"
)

func TestCodec_Framing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(Init(map[string]any{"threshold": 3})))
	require.NoError(t, enc.Encode(Compute(1, "p", []byte{0, 1, 2})))

	// wire field names are part of the protocol
	require.Contains(t, buf.String(), `"command":"INIT"`)
	require.Contains(t, buf.String(), `"correlationId":1`)
	require.Equal(t, 2, strings.Count(buf.String(), "\n"))

	dec := NewDecoder(strings.NewReader(buf.String() + "\n"))
	c1, err := dec.DecodeCommand()
	require.NoError(t, err)
	require.Equal(t, CommandInit, c1.Kind)
	require.Equal(t, map[string]any{"threshold": float64(3)}, c1.Config)

	c2, err := dec.DecodeCommand()
	require.NoError(t, err)
	require.Equal(t, Compute(1, "p", []byte{0, 1, 2}), c2)

	_, err = dec.DecodeCommand()
	require.ErrorIs(t, err, io.EOF)
}

func TestCodec_ReplyWithoutCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(Failed(0, "boom")))
	require.NotContains(t, buf.String(), "correlationId")

	r, err := NewDecoder(&buf).DecodeReply()
	require.NoError(t, err)
	require.Equal(t, Failed(0, "boom"), r)
}

func TestCodec_MalformedLineIsSkippable(t *testing.T) {
	dec := NewDecoder(strings.NewReader("not json\n{\"status\":\"INITIALIZED\"}\n"))
	_, err := dec.DecodeReply()
	require.ErrorIs(t, err, ErrMalformed)

	r, err := dec.DecodeReply()
	require.NoError(t, err)
	require.Equal(t, Initialized(), r)
}

func TestServeStream_SkipsMalformedCommand(t *testing.T) {
	cmdR, cmdW := io.Pipe()
	repR, repW := io.Pipe()

	factory := func() engine.Engine {
		return engine.ComputeFunc(func(context.Context, any, []byte) (any, error) { return nil, nil })
	}
	go func() {
		_ = ServeStream(context.Background(), cmdR, repW, factory)
		_ = repW.Close()
	}()
	defer func() { _ = cmdW.Close() }()

	_, err := io.WriteString(cmdW, "{broken\n")
	require.NoError(t, err)
	require.NoError(t, NewEncoder(cmdW).Encode(Init(nil)))

	r, err := NewDecoder(repR).DecodeReply()
	require.NoError(t, err)
	require.Equal(t, Initialized(), r)
}

func TestServeStream_RoundTrip(t *testing.T) {
	cmdR, cmdW := io.Pipe()
	repR, repW := io.Pipe()

	factory := func() engine.Engine {
		return engine.ComputeFunc(func(_ context.Context, params any, payload []byte) (any, error) {
			return map[string]any{"n": len(payload), "params": params}, nil
		})
	}

	served := make(chan error, 1)
	go func() {
		served <- ServeStream(context.Background(), cmdR, repW, factory)
		_ = repW.Close()
	}()

	enc := NewEncoder(cmdW)
	dec := NewDecoder(repR)

	require.NoError(t, enc.Encode(Init(nil)))
	r, err := dec.DecodeReply()
	require.NoError(t, err)
	require.Equal(t, Initialized(), r)

	require.NoError(t, enc.Encode(Compute(11, "x", []byte("abc"))))
	r, err = dec.DecodeReply()
	require.NoError(t, err)
	require.Equal(t, StatusComputed, r.Status)
	require.Equal(t, uint64(11), r.CorrelationID)
	require.Equal(t, map[string]any{"n": float64(3), "params": "x"}, r.Result)

	require.NoError(t, cmdW.Close())
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("ServeStream did not return after EOF")
	}
	_, err = dec.DecodeReply()
	require.True(t, errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe), "err = %v", err)
}

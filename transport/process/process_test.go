package process

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/offload/engine/mask"
	"github.com/ygrebnov/offload/protocol"
	"github.com/ygrebnov/offload/transport"
)

const helperEnv = "OFFLOAD_PROCESS_HELPER"

// TestMain turns the test binary into a worker process when helperEnv is set.
func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "noisy":
		fmt.Fprintln(os.Stdout, "engine debug output")
		fallthrough
	case "1":
		if err := protocol.ServeStream(context.Background(), os.Stdin, os.Stdout, mask.Factory); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func helperTransport() *Transport {
	return New(os.Args[0], WithEnv(helperEnv+"=1"), WithGracePeriod(time.Second))
}

func recvReply(t *testing.T, ep transport.Endpoint) protocol.Reply {
	t.Helper()
	select {
	case r, ok := <-ep.Replies():
		require.True(t, ok, "replies closed unexpectedly")
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reply")
		return protocol.Reply{}
	}
}

func TestProcess_RoundTrip(t *testing.T) {
	ep, err := helperTransport().Spawn(context.Background())
	require.NoError(t, err)
	defer func() { _ = ep.Terminate() }()

	ctx := context.Background()
	require.NoError(t, ep.Send(ctx, protocol.Init(mask.Config{Threshold: 100})))
	require.Equal(t, protocol.Initialized(), recvReply(t, ep))

	payload := []byte{0, 99, 100, 255}
	require.NoError(t, ep.Send(ctx, protocol.Compute(1, nil, payload)))

	r := recvReply(t, ep)
	require.Equal(t, protocol.StatusComputed, r.Status)
	require.Equal(t, uint64(1), r.CorrelationID)

	result, ok := r.Result.(map[string]any)
	require.True(t, ok, "result = %#v", r.Result)
	require.Equal(t, float64(2), result["covered"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte{0, 0, 255, 255}), result["mask"])
	require.Equal(t, []byte{0, 99, 100, 255}, payload, "process transport must not mutate the caller's payload")
}

func TestProcess_SkipsMalformedOutput(t *testing.T) {
	tr := New(os.Args[0], WithEnv(helperEnv+"=noisy"), WithGracePeriod(time.Second))
	ep, err := tr.Spawn(context.Background())
	require.NoError(t, err)
	defer func() { _ = ep.Terminate() }()

	require.NoError(t, ep.Send(context.Background(), protocol.Init(mask.Config{Threshold: 100})))
	require.Equal(t, protocol.Initialized(), recvReply(t, ep))
}

func TestEndpoint_SendHonorsContextOnBlockedWrite(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pr.Close() }()
	ep := &endpoint{
		enc:  protocol.NewEncoder(pw),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- ep.Send(ctx, protocol.Init(nil)) }()
	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatalf("Send blocked past its context")
	}
}

func TestProcess_ComputeErrorEchoesCorrelationID(t *testing.T) {
	ep, err := helperTransport().Spawn(context.Background())
	require.NoError(t, err)
	defer func() { _ = ep.Terminate() }()

	require.NoError(t, ep.Send(context.Background(), protocol.Compute(8, nil, []byte{1})))
	r := recvReply(t, ep)
	require.Equal(t, protocol.StatusError, r.Status)
	require.Equal(t, uint64(8), r.CorrelationID)
}

func TestProcess_Terminate(t *testing.T) {
	ep, err := helperTransport().Spawn(context.Background())
	require.NoError(t, err)

	require.NoError(t, ep.Terminate())
	require.NoError(t, ep.Terminate())

	select {
	case _, open := <-ep.Replies():
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatalf("replies not closed after Terminate")
	}

	err = ep.Send(context.Background(), protocol.Init(nil))
	require.ErrorIs(t, err, transport.ErrTerminated)
}

func TestProcess_SpawnFailure(t *testing.T) {
	_, err := New("/nonexistent/offload-worker").Spawn(context.Background())
	require.ErrorIs(t, err, transport.ErrSpawn)
}

package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/offload"
	"github.com/ygrebnov/offload/engine/mask"
	"github.com/ygrebnov/offload/policy"
)

func TestManager_OverChildProcess(t *testing.T) {
	ctx := context.Background()
	m, err := offload.New(
		offload.WithTransport(helperTransport()),
		offload.WithCapabilities(policy.Capabilities{Class: policy.ClassStandard, RemoteSupported: true}),
	)
	require.NoError(t, err)
	defer func() { _ = m.Terminate(ctx) }()

	err = m.Init(ctx, map[string]any{"threshold": "high"})
	require.ErrorIs(t, err, offload.ErrInitFailed)
	_, err = m.Compute(ctx, nil, []byte{1})
	require.ErrorIs(t, err, offload.ErrNotReady)

	require.NoError(t, m.Init(ctx, mask.Config{Threshold: 50, Invert: true}))
	mode, ok := m.Mode()
	require.True(t, ok)
	require.Equal(t, policy.Remote, mode)

	threshold := uint8(10)
	res, err := m.Compute(ctx, mask.Params{Threshold: &threshold}, []byte{5, 10, 60})
	require.NoError(t, err)

	result, ok := res.(map[string]any)
	require.True(t, ok, "result = %#v", res)
	require.Equal(t, float64(1), result["covered"])
}

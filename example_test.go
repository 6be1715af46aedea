package offload_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ygrebnov/offload"
	"github.com/ygrebnov/offload/engine"
	"github.com/ygrebnov/offload/engine/mask"
	"github.com/ygrebnov/offload/metrics"
	"github.com/ygrebnov/offload/policy"
	"github.com/ygrebnov/offload/transport/inproc"
)

// ExampleManager runs the mask engine on a dedicated goroutine-hosted executor.
func ExampleManager() {
	ctx := context.Background()

	m, err := offload.New(
		offload.WithTransport(inproc.New(mask.Factory)),
		offload.WithCapabilities(policy.Capabilities{Class: policy.ClassStandard, RemoteSupported: true}),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer func() { _ = m.Terminate(ctx) }()

	if err := m.Init(ctx, mask.Config{Threshold: 128}); err != nil {
		fmt.Println(err)
		return
	}
	mode, _ := m.Mode()

	res, err := m.Compute(ctx, nil, []byte{10, 200, 128, 0})
	if err != nil {
		fmt.Println(err)
		return
	}
	r := res.(mask.Result)
	fmt.Println(mode, r.Mask, r.Covered)

	// Output:
	// remote [0 255 255 0] 2
}

// ExampleLocal forces the engine to run on the caller's goroutine.
func ExampleLocal() {
	ctx := context.Background()

	m, _ := offload.New(
		offload.WithEngine(func() engine.Engine {
			return engine.ComputeFunc(func(_ context.Context, params any, payload []byte) (any, error) {
				return fmt.Sprintf("%v:%d", params, len(payload)), nil
			})
		}),
	)

	_ = m.Init(ctx, nil, offload.Local())
	mode, _ := m.Mode()
	res, _ := m.Compute(ctx, "bytes", make([]byte, 3))
	fmt.Println(mode, res)

	// Output:
	// local bytes:3
}

// ExampleManager_Compute_notReady shows the error returned before a successful Init.
func ExampleManager_Compute_notReady() {
	ctx := context.Background()
	m, _ := offload.New(offload.WithEngine(mask.Factory))

	_, err := m.Compute(ctx, nil, []byte{1})
	fmt.Println(errors.Is(err, offload.ErrNotReady))

	err = m.Init(ctx, "bad config")
	fmt.Println(errors.Is(err, offload.ErrInitFailed))

	_, err = m.Compute(ctx, nil, []byte{1})
	fmt.Println(errors.Is(err, offload.ErrNotReady))

	// Output:
	// true
	// true
	// true
}

// ExampleWithMetrics shows how to configure a Manager with a metrics provider.
// Here we use the built-in BasicProvider; NewPrometheusProvider exports the same
// instruments to a Prometheus registry.
func ExampleWithMetrics() {
	ctx := context.Background()
	p := metrics.NewBasicProvider()

	m, _ := offload.New(
		offload.WithEngine(mask.Factory),
		offload.WithMetrics(p),
	)
	_ = m.Init(ctx, mask.Config{Threshold: 1})
	_, _ = m.Compute(ctx, nil, []byte{0, 1, 2})
	_, _ = m.Compute(ctx, nil, []byte{3})

	fmt.Println(p.CounterValue("offload_computes_total"))
	fmt.Println(p.HistogramSnapshot("offload_compute_duration_seconds").Count)

	// Exporting to Prometheus instead:
	_ = metrics.NewPrometheusProvider(prometheus.NewRegistry())

	// Output:
	// 2
	// 2
}

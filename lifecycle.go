package offload

import (
	"sync"
)

// lifecycleCoordinator encapsulates the teardown sequence of a remote execution
// context. It doesn't own channels; it orders termination, waits and logging.
//
// Close() is safe for concurrent calls; the sequence executes exactly once.
type lifecycleCoordinator struct {
	terminate      func() error
	waitDispatcher func()
	onError        func(error)
	onClosed       func()

	once sync.Once
}

func newLifecycleCoordinator(
	terminate func() error,
	waitDispatcher func(),
	onError func(error),
	onClosed func(),
) *lifecycleCoordinator {
	return &lifecycleCoordinator{
		terminate:      terminate,
		waitDispatcher: waitDispatcher,
		onError:        onError,
		onClosed:       onClosed,
	}
}

// Close executes the teardown sequence exactly once:
// 1) terminate the endpoint, which closes its replies stream
// 2) wait for the dispatcher to drain and exit; awaiting callers observe it
// 3) report completion
func (lc *lifecycleCoordinator) Close() {
	lc.once.Do(func() {
		if lc.terminate != nil {
			if err := lc.terminate(); err != nil && lc.onError != nil {
				lc.onError(err)
			}
		}
		if lc.waitDispatcher != nil {
			lc.waitDispatcher()
		}
		if lc.onClosed != nil {
			lc.onClosed()
		}
	})
}

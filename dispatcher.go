package offload

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ygrebnov/offload/metrics"
	"github.com/ygrebnov/offload/protocol"
)

// dispatcher reads replies from a remote execution context and routes each one
// to the caller awaiting its correlation id. Replies nobody awaits are logged
// and dropped. The dispatcher stops when the replies channel is closed; it
// never closes channels it doesn't own.
type dispatcher struct {
	replies <-chan protocol.Reply
	logger  logrus.FieldLogger

	unmatched metrics.Counter

	mu      sync.Mutex
	pending map[uint64]chan protocol.Reply

	done chan struct{}
}

func newDispatcher(replies <-chan protocol.Reply, logger logrus.FieldLogger, unmatched metrics.Counter) *dispatcher {
	return &dispatcher{
		replies:   replies,
		logger:    logger,
		unmatched: unmatched,
		pending:   make(map[uint64]chan protocol.Reply),
		done:      make(chan struct{}),
	}
}

// run starts the dispatch loop and returns when the replies channel is closed.
func (d *dispatcher) run() {
	defer close(d.done)
	for r := range d.replies {
		d.dispatch(r)
	}
}

// expect registers a resolver for id. The returned channel receives at most one reply.
func (d *dispatcher) expect(id uint64) <-chan protocol.Reply {
	ch := make(chan protocol.Reply, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	return ch
}

// forget drops the resolver for id; a later reply for it counts as unmatched.
func (d *dispatcher) forget(id uint64) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *dispatcher) dispatch(r protocol.Reply) {
	d.mu.Lock()
	ch, ok := d.pending[r.CorrelationID]
	if ok {
		delete(d.pending, r.CorrelationID)
	}
	d.mu.Unlock()

	if !ok {
		d.unmatched.Add(1)
		d.logger.WithFields(logrus.Fields{
			"correlation_id": r.CorrelationID,
			"status":         r.Status,
		}).Warn("discarding reply with no awaiting caller")
		return
	}
	ch <- r
}

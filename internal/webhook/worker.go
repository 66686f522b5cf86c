package webhook

import (
	"sync"

	"thealttext/internal/domain"
)

// endpointWorker serializes deliveries for one endpoint so receivers observe
// events in publish order. The queue is unbounded: enqueue never blocks the
// publisher, backpressure is absorbed here.
type endpointWorker struct {
	dispatcher *Dispatcher
	endpoint   domain.WebhookEndpoint

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []domain.DomainEvent
	closed bool
}

func newEndpointWorker(d *Dispatcher, endpoint domain.WebhookEndpoint) *endpointWorker {
	w := &endpointWorker{dispatcher: d, endpoint: endpoint}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *endpointWorker) updateEndpoint(endpoint domain.WebhookEndpoint) {
	w.mu.Lock()
	w.endpoint = endpoint
	w.mu.Unlock()
}

func (w *endpointWorker) enqueue(event domain.DomainEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue = append(w.queue, event)
	w.cond.Signal()
}

func (w *endpointWorker) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.cond.Signal()
}

func (w *endpointWorker) run() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		event := w.queue[0]
		w.queue = w.queue[1:]
		endpoint := w.endpoint
		w.mu.Unlock()

		w.dispatcher.deliver(endpoint, event)
	}
}

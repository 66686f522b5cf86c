package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
)

const (
	// HeaderSignature carries the hex HMAC-SHA256 of the request body.
	HeaderSignature = "X-TheAltText-Signature"
	// HeaderEvent carries the event type.
	HeaderEvent = "X-TheAltText-Event"
	// HeaderEventID carries the stable event id used for receiver-side
	// deduplication across retries.
	HeaderEventID = "X-TheAltText-Event-Id"

	deliveryTimeout = 10 * time.Second
	publishTimeout  = 5 * time.Second
)

// defaultSchedule is the wait before retry n+1. Five attempts total.
var defaultSchedule = []time.Duration{
	time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
}

// envelope is the canonical wire form of a delivered event.
type envelope struct {
	EventID    string           `json:"eventId"`
	Type       domain.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurredAt"`
	Payload    json.RawMessage  `json:"payload"`
}

// Dispatcher fans domain events out to subscribed webhook endpoints.
// Publishing never blocks on network delivery; deliveries to one endpoint are
// serialized to preserve ordering, while distinct endpoints proceed
// independently.
type Dispatcher struct {
	endpoints  domain.WebhookRepository
	store      domain.EventRepository
	httpClient *http.Client
	logger     infra.Logger
	schedule   []time.Duration
	sleep      func(ctx context.Context, d time.Duration) error

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	workers map[string]*endpointWorker

	inboxMu     sync.Mutex
	inboxCond   *sync.Cond
	inbox       []domain.DomainEvent
	inboxClosed bool

	inboxWG  sync.WaitGroup
	workerWG sync.WaitGroup
}

// NewDispatcher wires a dispatcher. store may be nil; events are then only
// delivered, not durably recorded.
func NewDispatcher(endpoints domain.WebhookRepository, store domain.EventRepository, logger infra.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoints:  endpoints,
		store:      store,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		logger:     logger,
		schedule:   defaultSchedule,
		sleep:      sleepCtx,
		baseCtx:    ctx,
		cancel:     cancel,
		workers:    make(map[string]*endpointWorker),
	}
	d.inboxCond = sync.NewCond(&d.inboxMu)
	d.inboxWG.Add(1)
	go d.runInbox()
	return d
}

// Publish enqueues the event for delivery to every enabled endpoint of the
// event owner subscribed to its type. It returns immediately; lookup and
// delivery happen asynchronously. Events pass through a single inbox so that
// publish order is preserved per endpoint.
func (d *Dispatcher) Publish(event domain.DomainEvent) {
	d.inboxMu.Lock()
	defer d.inboxMu.Unlock()
	if d.inboxClosed {
		return
	}
	d.inbox = append(d.inbox, event)
	d.inboxCond.Signal()
}

func (d *Dispatcher) runInbox() {
	defer d.inboxWG.Done()
	for {
		d.inboxMu.Lock()
		for len(d.inbox) == 0 && !d.inboxClosed {
			d.inboxCond.Wait()
		}
		if len(d.inbox) == 0 {
			d.inboxMu.Unlock()
			return
		}
		event := d.inbox[0]
		d.inbox = d.inbox[1:]
		d.inboxMu.Unlock()

		d.fanOut(event)
	}
}

func (d *Dispatcher) fanOut(event domain.DomainEvent) {
	ctx, cancel := context.WithTimeout(d.baseCtx, publishTimeout)
	defer cancel()

	if d.store != nil {
		if err := d.store.SaveEvent(ctx, &event); err != nil {
			d.logger.Warn().Err(err).Str("event_id", event.ID).Msg("webhook: persist event failed")
		}
	}

	targets, err := d.endpoints.ListForEvent(ctx, event.OwnerID, event.Type)
	if err != nil {
		d.logger.Error().Err(err).Str("event_id", event.ID).Msg("webhook: endpoint lookup failed")
		return
	}
	for _, endpoint := range targets {
		if !endpoint.SubscribedTo(event.Type) {
			continue
		}
		d.workerFor(endpoint).enqueue(event)
	}
}

// TestDelivery performs one synchronous signed delivery without retries and
// returns the HTTP status and round-trip latency.
func (d *Dispatcher) TestDelivery(ctx context.Context, endpoint domain.WebhookEndpoint, event domain.DomainEvent) (int, time.Duration, error) {
	body, err := json.Marshal(envelope{
		EventID:    event.ID,
		Type:       event.Type,
		OccurredAt: event.OccurredAt,
		Payload:    event.Payload,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("webhook: encode test payload: %w", err)
	}
	started := time.Now()
	status, err := d.post(ctx, endpoint, event, body)
	return status, time.Since(started), err
}

// Shutdown stops accepting new deliveries, lets queued deliveries drain, and
// waits for in-flight attempts to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.inboxMu.Lock()
	d.inboxClosed = true
	d.inboxCond.Signal()
	d.inboxMu.Unlock()
	d.inboxWG.Wait()

	d.mu.Lock()
	for _, w := range d.workers {
		w.close()
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	case <-done:
		d.cancel()
		return nil
	}
}

func (d *Dispatcher) workerFor(endpoint domain.WebhookEndpoint) *endpointWorker {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.workers[endpoint.ID]; ok {
		w.updateEndpoint(endpoint)
		return w
	}
	w := newEndpointWorker(d, endpoint)
	d.workers[endpoint.ID] = w
	d.workerWG.Add(1)
	go func() {
		defer d.workerWG.Done()
		w.run()
	}()
	return w
}

// deliver drives the per-delivery state machine: pending -> attempt ->
// delivered, or backoff and try again, or exhausted after the final attempt.
func (d *Dispatcher) deliver(endpoint domain.WebhookEndpoint, event domain.DomainEvent) {
	body, err := json.Marshal(envelope{
		EventID:    event.ID,
		Type:       event.Type,
		OccurredAt: event.OccurredAt,
		Payload:    event.Payload,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("event_id", event.ID).Msg("webhook: encode payload failed")
		return
	}

	delivery := domain.EventDelivery{
		EventID:    event.ID,
		EndpointID: endpoint.ID,
		EventType:  event.Type,
		Status:     domain.DeliveryPending,
	}

	maxAttempts := len(d.schedule)
	for n := 1; n <= maxAttempts; n++ {
		delivery.Attempts = n
		status, err := d.post(d.baseCtx, endpoint, event, body)
		switch {
		case err != nil:
			delivery.LastError = err.Error()
		case status < 200 || status >= 300:
			delivery.LastError = fmt.Sprintf("endpoint returned status %d", status)
		default:
			delivery.Status = domain.DeliveryDelivered
			delivery.LastError = ""
			d.recordDelivery(&delivery)
			d.logger.Info().
				Str("event_id", event.ID).
				Str("endpoint_id", endpoint.ID).
				Int("attempts", n).
				Msg("webhook: delivered")
			return
		}

		d.logger.Warn().
			Str("event_id", event.ID).
			Str("endpoint_id", endpoint.ID).
			Int("attempt", n).
			Str("error", delivery.LastError).
			Msg("webhook: delivery attempt failed")
		d.recordDelivery(&delivery)

		if n < maxAttempts {
			if err := d.sleep(d.baseCtx, d.schedule[n-1]); err != nil {
				return
			}
		}
	}

	// Exhausted deliveries are durably recorded and surfaced to the endpoint
	// owner, never silently dropped.
	delivery.Status = domain.DeliveryExhausted
	d.recordDelivery(&delivery)
	d.logger.Error().
		Str("event_id", event.ID).
		Str("endpoint_id", endpoint.ID).
		Int("attempts", delivery.Attempts).
		Msg("webhook: delivery exhausted")
}

func (d *Dispatcher) post(ctx context.Context, endpoint domain.WebhookEndpoint, event domain.DomainEvent, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(endpoint.Secret, body))
	req.Header.Set(HeaderEvent, string(event.Type))
	req.Header.Set(HeaderEventID, event.ID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (d *Dispatcher) recordDelivery(delivery *domain.EventDelivery) {
	if d.store == nil {
		return
	}
	delivery.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := d.store.SaveDelivery(ctx, delivery); err != nil {
		d.logger.Warn().Err(err).
			Str("event_id", delivery.EventID).
			Str("endpoint_id", delivery.EndpointID).
			Msg("webhook: persist delivery failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

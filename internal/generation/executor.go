package generation

import (
	"context"
	"fmt"
	"time"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
	"thealttext/internal/providers/vision"
	"thealttext/internal/wcag"
)

// Gateway issues one classified generation attempt against a single provider.
type Gateway interface {
	Attempt(ctx context.Context, req domain.GenerationRequest, provider vision.Provider) (domain.ModelAttempt, string)
}

// Recorder observes every attempt for usage accounting.
type Recorder interface {
	Record(attempt domain.ModelAttempt)
}

// Publisher accepts domain events for asynchronous webhook delivery.
type Publisher interface {
	Publish(event domain.DomainEvent)
}

const (
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 8 * time.Second
)

// Executor walks a ranked provider chain for one generation request until a
// provider succeeds or the chain is exhausted. Attempts run strictly
// sequentially; ordering is part of the fallback contract.
type Executor struct {
	gateway  Gateway
	recorder Recorder
	events   Publisher
	logger   infra.Logger

	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewExecutor wires the executor. recorder and events may be nil in tests.
func NewExecutor(gateway Gateway, recorder Recorder, events Publisher, logger infra.Logger) *Executor {
	return &Executor{
		gateway:     gateway,
		recorder:    recorder,
		events:      events,
		logger:      logger,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

// Generate runs the fallback chain for req. The chain is an immutable value
// owned by the caller; free-tier providers are expected to rank first.
// A GenerationResult is always returned, carrying either alt text or the
// terminal error plus the full attempt chain for diagnostics.
func (e *Executor) Generate(ctx context.Context, req domain.GenerationRequest, chain []vision.Provider) *domain.GenerationResult {
	result := &domain.GenerationResult{
		RequestID: req.ID,
		WCAGLevel: req.WCAGLevel,
		Language:  req.Language,
		CreatedAt: e.now().UTC(),
	}

	backoff := e.baseBackoff
	for _, provider := range chain {
		retried := false
	providerLoop:
		for {
			attempt, text := e.gateway.Attempt(ctx, req, provider)
			e.record(attempt)
			result.Attempts = append(result.Attempts, attempt)

			switch attempt.Outcome {
			case domain.OutcomeSuccess:
				result.AltText = text
				result.Provider = provider.Name
				result.Confidence = provider.Confidence()
				result.WCAGScore = wcag.Analyze(text).Score
				e.publish(domain.NewEvent(domain.EventAltTextGenerated, req.OwnerID, result))
				return result

			case domain.OutcomeRateLimited, domain.OutcomeInvalidResponse:
				// Capacity or malformed output: the same provider will not
				// do better right now, move down the chain without waiting.
				break providerLoop

			case domain.OutcomeTimeout, domain.OutcomeProviderError:
				if retried {
					break providerLoop
				}
				retried = true
				wait := backoff
				if backoff *= 2; backoff > e.maxBackoff {
					backoff = e.maxBackoff
				}
				if err := e.sleep(ctx, wait); err != nil {
					return e.exhaust(req, result, fmt.Sprintf("canceled while backing off: %v", err))
				}

			default:
				break providerLoop
			}
		}
	}

	return e.exhaust(req, result, fmt.Sprintf("all %d providers failed", len(chain)))
}

func (e *Executor) exhaust(req domain.GenerationRequest, result *domain.GenerationResult, detail string) *domain.GenerationResult {
	result.Err = domain.ErrExhausted
	result.Error = fmt.Sprintf("%s: %s", domain.ErrExhausted, detail)
	e.logger.Error().
		Str("request_id", req.ID).
		Int("attempts", len(result.Attempts)).
		Msg("generation: provider chain exhausted")
	e.publish(domain.NewEvent(domain.EventAltTextFailed, req.OwnerID, result))
	return result
}

func (e *Executor) record(attempt domain.ModelAttempt) {
	if e.recorder != nil {
		e.recorder.Record(attempt)
	}
}

func (e *Executor) publish(event domain.DomainEvent) {
	if e.events != nil {
		e.events.Publish(event)
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

package vision

import (
	"context"
	"errors"
	"net"
	"time"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
	"thealttext/internal/usage"
)

// Describer issues one vision model call. Implemented by Client; tests supply
// stubs.
type Describer interface {
	Describe(ctx context.Context, model string, req domain.GenerationRequest) (string, error)
}

// Gateway wraps a Describer with per-provider timeouts and outcome
// classification. It never lets an error escape: every call, however it
// fails, yields exactly one ModelAttempt.
type Gateway struct {
	client Describer
	logger infra.Logger
	now    func() time.Time
}

// NewGateway constructs a gateway over the given client.
func NewGateway(client Describer, logger infra.Logger) *Gateway {
	return &Gateway{client: client, logger: logger, now: time.Now}
}

// Attempt performs one generation attempt against a single provider and
// returns the attempt record plus the alt text on success.
func (g *Gateway) Attempt(ctx context.Context, req domain.GenerationRequest, provider Provider) (domain.ModelAttempt, string) {
	started := g.now()
	attempt := domain.ModelAttempt{
		RequestID:    req.ID,
		OwnerID:      req.OwnerID,
		Provider:     provider.Name,
		Tier:         provider.Tier,
		StartedAt:    started,
		CostEstimate: provider.CostPerCall,
		CarbonMg:     usage.EstimateFor(usage.TierOperation(provider.Tier), 1).CO2Mg,
	}

	callCtx, cancel := context.WithTimeout(ctx, provider.EffectiveTimeout())
	defer cancel()

	text, err := g.client.Describe(callCtx, provider.Name, req)
	attempt.Latency = g.now().Sub(started)

	switch {
	case err == nil && text != "":
		attempt.Outcome = domain.OutcomeSuccess
	case err == nil:
		attempt.Outcome = domain.OutcomeInvalidResponse
		attempt.Error = "empty or non-textual response"
	default:
		attempt.Outcome = classify(err)
		attempt.Error = err.Error()
	}

	if attempt.Outcome != domain.OutcomeSuccess {
		g.logger.Warn().
			Str("provider", provider.Name).
			Str("outcome", string(attempt.Outcome)).
			Str("request_id", req.ID).
			Dur("latency", attempt.Latency).
			Msg("vision: attempt failed")
		return attempt, ""
	}

	g.logger.Info().
		Str("provider", provider.Name).
		Str("request_id", req.ID).
		Dur("latency", attempt.Latency).
		Msg("vision: attempt succeeded")
	return attempt, text
}

func classify(err error) domain.AttemptOutcome {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == 429 {
			return domain.OutcomeRateLimited
		}
		return domain.OutcomeProviderError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.OutcomeTimeout
	}
	return domain.OutcomeProviderError
}

package usage

import (
	"context"
	"sync"
	"time"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
)

// OwnerUsage is the per-owner aggregate consumed by dashboards and billing.
type OwnerUsage struct {
	CallCount        int64   `json:"call_count"`
	SuccessCount     int64   `json:"success_count"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	EstimatedCarbon  float64 `json:"estimated_carbon_mg"`
	EnergyWh         float64 `json:"energy_wh"`
}

// Accountant observes every model attempt and keeps per-owner usage counters.
// Recording is best-effort: persistence failures are logged and swallowed so
// accounting can never fail the operation being billed.
type Accountant struct {
	repo    domain.UsageRepository
	logger  infra.Logger
	timeout time.Duration

	mu     sync.Mutex
	owners map[string]*OwnerUsage
}

// NewAccountant wires the accountant. repo may be nil, in which case only
// in-memory aggregates are kept.
func NewAccountant(repo domain.UsageRepository, logger infra.Logger) *Accountant {
	return &Accountant{
		repo:    repo,
		logger:  logger,
		timeout: 5 * time.Second,
		owners:  make(map[string]*OwnerUsage),
	}
}

// Record bills one attempt, success or failure. It never returns an error and
// never panics into the caller.
func (a *Accountant) Record(attempt domain.ModelAttempt) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("accountant: record panicked")
		}
	}()

	est := EstimateFor(TierOperation(attempt.Tier), 1)

	a.mu.Lock()
	agg, ok := a.owners[attempt.OwnerID]
	if !ok {
		agg = &OwnerUsage{}
		a.owners[attempt.OwnerID] = agg
	}
	agg.CallCount++
	if attempt.Outcome == domain.OutcomeSuccess {
		agg.SuccessCount++
	}
	agg.EstimatedCostUSD += attempt.CostEstimate
	agg.EstimatedCarbon += est.CO2Mg
	agg.EnergyWh += est.EnergyWh
	a.mu.Unlock()

	if a.repo == nil {
		return
	}
	go func(attempt domain.ModelAttempt) {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.repo.InsertAttempt(ctx, &attempt); err != nil {
			a.logger.Warn().Err(err).
				Str("owner_id", attempt.OwnerID).
				Str("provider", attempt.Provider).
				Msg("accountant: persist attempt failed")
		}
	}(attempt)
}

// RecordScan bills a single-page scan against the owner's carbon ledger.
func (a *Accountant) RecordScan(ownerID string, pages int) {
	est := EstimateFor("web_scan_page", pages)
	a.mu.Lock()
	agg, ok := a.owners[ownerID]
	if !ok {
		agg = &OwnerUsage{}
		a.owners[ownerID] = agg
	}
	agg.EstimatedCarbon += est.CO2Mg
	agg.EnergyWh += est.EnergyWh
	a.mu.Unlock()
}

// Snapshot returns a copy of the aggregate for one owner.
func (a *Accountant) Snapshot(ownerID string) OwnerUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if agg, ok := a.owners[ownerID]; ok {
		return *agg
	}
	return OwnerUsage{}
}

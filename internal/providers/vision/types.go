package vision

import "time"

// Tier labels a provider as free or paid capacity.
const (
	TierFree = "free"
	TierPaid = "paid"
)

// Provider is one ranked entry in the fallback chain. The chain is immutable
// configuration passed into each execution, never ambient global state.
type Provider struct {
	Name        string        `json:"name"`
	Tier        string        `json:"tier"`
	CostPerCall float64       `json:"cost_per_call"`
	Timeout     time.Duration `json:"timeout"`
}

// Confidence returns the confidence score attributed to alt text produced by
// this provider tier.
func (p Provider) Confidence() float64 {
	if p.Tier == TierPaid {
		return 0.92
	}
	return 0.85
}

// EffectiveTimeout returns the per-provider call timeout.
func (p Provider) EffectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 60 * time.Second
}

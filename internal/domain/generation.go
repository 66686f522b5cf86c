package domain

import "time"

// ImageSource references the image to describe, either by URL or as raw
// uploaded bytes. Exactly one of URL or Data is set.
type ImageSource struct {
	URL      string
	Data     []byte
	MIMEType string
	FileName string
}

// GenerationRequest captures one alt text generation request. Immutable once
// created.
type GenerationRequest struct {
	ID         string
	OwnerID    string
	Source     ImageSource
	Language   string
	Tone       string
	WCAGLevel  string
	SEOContext string
	CreatedAt  time.Time
}

// AttemptOutcome classifies the result of a single provider call.
type AttemptOutcome string

const (
	OutcomeSuccess         AttemptOutcome = "success"
	OutcomeRateLimited     AttemptOutcome = "rate_limited"
	OutcomeTimeout         AttemptOutcome = "timeout"
	OutcomeInvalidResponse AttemptOutcome = "invalid_response"
	OutcomeProviderError   AttemptOutcome = "provider_error"
)

// Terminal reports whether the outcome ends the fallback chain.
func (o AttemptOutcome) Terminal() bool {
	return o == OutcomeSuccess
}

// ModelAttempt is one append-only record of a provider call. Every call
// produces exactly one attempt, billable regardless of outcome.
type ModelAttempt struct {
	RequestID    string         `json:"request_id"`
	OwnerID      string         `json:"owner_id"`
	Provider     string         `json:"provider"`
	Tier         string         `json:"tier"`
	Outcome      AttemptOutcome `json:"outcome"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Latency      time.Duration  `json:"latency"`
	CostEstimate float64        `json:"cost_estimate"`
	CarbonMg     float64        `json:"carbon_mg"`
}

// GenerationResult is created exactly once per request, on success or on
// final exhaustion of the provider chain.
type GenerationResult struct {
	RequestID  string         `json:"request_id"`
	AltText    string         `json:"alt_text,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	WCAGLevel  string         `json:"wcag_level"`
	WCAGScore  float64        `json:"wcag_score,omitempty"`
	Language   string         `json:"language"`
	Attempts   []ModelAttempt `json:"attempts"`
	Error      string         `json:"error,omitempty"`
	Err        error          `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Succeeded reports whether the chain produced alt text.
func (r *GenerationResult) Succeeded() bool {
	return r != nil && r.Err == nil && r.Error == ""
}

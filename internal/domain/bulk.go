package domain

import "time"

// BulkJobStatus enumerates the bulk job lifecycle. Transitions are monotonic:
// queued -> running -> one of the terminal states, never backwards.
type BulkJobStatus string

const (
	BulkStatusQueued              BulkJobStatus = "queued"
	BulkStatusRunning             BulkJobStatus = "running"
	BulkStatusCompleted           BulkJobStatus = "completed"
	BulkStatusCompletedWithErrors BulkJobStatus = "completed_with_errors"
	BulkStatusFailed              BulkJobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s BulkJobStatus) Terminal() bool {
	switch s {
	case BulkStatusCompleted, BulkStatusCompletedWithErrors, BulkStatusFailed:
		return true
	}
	return false
}

// BulkItem is the per-image slot inside a bulk job.
type BulkItem struct {
	Index    int               `json:"index"`
	FileName string            `json:"file_name,omitempty"`
	Result   *GenerationResult `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// BulkJob tracks up to 100 independent generation requests under one status.
// Mutated only by the coordinator that owns it; reads receive deep snapshots.
type BulkJob struct {
	ID          string        `json:"id"`
	OwnerID     string        `json:"owner_id"`
	Status      BulkJobStatus `json:"status"`
	Total       int           `json:"total"`
	Completed   int           `json:"completed"`
	Errors      int           `json:"errors"`
	Items       []BulkItem    `json:"items"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

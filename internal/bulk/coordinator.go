package bulk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
	"thealttext/internal/providers/vision"
)

// Generator runs the provider fallback chain for a single request.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest, chain []vision.Provider) *domain.GenerationResult
}

// Publisher accepts domain events for asynchronous webhook delivery.
type Publisher interface {
	Publish(event domain.DomainEvent)
}

const (
	// DefaultMaxImages caps the number of images in one bulk job.
	DefaultMaxImages = 100
	// DefaultWorkers bounds concurrent generations across all jobs.
	DefaultWorkers = 5
)

// Options tunes the coordinator. Zero values fall back to defaults.
type Options struct {
	Workers   int64
	MaxImages int
}

// Coordinator owns the lifecycle of bulk generation jobs. Items from every
// running job share one global worker pool, so a single large job cannot
// starve the rest of the tenant base.
type Coordinator struct {
	generator Generator
	chain     []vision.Provider
	events    Publisher
	logger    infra.Logger

	sem       *semaphore.Weighted
	maxImages int

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*jobState

	wg sync.WaitGroup
}

// jobState pairs the externally visible job with the scheduling machinery.
// job is mutated only under Coordinator.mu; reads get deep snapshots.
type jobState struct {
	job      domain.BulkJob
	requests []domain.GenerationRequest

	schedCancel context.CancelFunc
	schedCtx    context.Context
	canceled    bool
}

// NewCoordinator wires a coordinator. events may be nil in tests.
func NewCoordinator(generator Generator, chain []vision.Provider, events Publisher, logger infra.Logger, opts Options) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = DefaultMaxImages
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		generator:  generator,
		chain:      chain,
		events:     events,
		logger:     logger,
		sem:        semaphore.NewWeighted(opts.Workers),
		maxImages:  opts.MaxImages,
		baseCtx:    ctx,
		baseCancel: cancel,
		jobs:       make(map[string]*jobState),
	}
}

// Submit validates the batch, registers a queued job and starts processing it
// asynchronously. The returned snapshot reflects the job at submission time.
func (c *Coordinator) Submit(ctx context.Context, ownerID string, requests []domain.GenerationRequest) (domain.BulkJob, error) {
	if len(requests) == 0 {
		return domain.BulkJob{}, fmt.Errorf("%w: bulk job needs at least one image", domain.ErrValidation)
	}
	if len(requests) > c.maxImages {
		return domain.BulkJob{}, fmt.Errorf("%w: bulk job accepts at most %d images, got %d", domain.ErrValidation, c.maxImages, len(requests))
	}

	job := domain.BulkJob{
		ID:        newJobID(),
		OwnerID:   ownerID,
		Status:    domain.BulkStatusQueued,
		Total:     len(requests),
		Items:     make([]domain.BulkItem, len(requests)),
		CreatedAt: time.Now().UTC(),
	}
	for i := range requests {
		requests[i].OwnerID = ownerID
		if requests[i].ID == "" {
			requests[i].ID = uuid.NewString()
		}
		job.Items[i] = domain.BulkItem{Index: i, FileName: requests[i].Source.FileName}
	}

	schedCtx, schedCancel := context.WithCancel(c.baseCtx)
	state := &jobState{
		job:         job,
		requests:    requests,
		schedCtx:    schedCtx,
		schedCancel: schedCancel,
	}

	c.mu.Lock()
	c.jobs[job.ID] = state
	snap := snapshotLocked(state)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(state)
	}()

	c.logger.Info().
		Str("job_id", job.ID).
		Int("total", job.Total).
		Msg("bulk: job submitted")
	return snap, nil
}

// Status returns a deep snapshot of the job. Snapshots of terminal jobs are
// stable across calls.
func (c *Coordinator) Status(jobID, ownerID string) (domain.BulkJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.jobs[jobID]
	if !ok || state.job.OwnerID != ownerID {
		return domain.BulkJob{}, domain.ErrNotFound
	}
	return snapshotLocked(state), nil
}

// Cancel stops scheduling further items of the job. In-flight generations run
// to completion and keep their results; unstarted items are marked canceled.
// Canceling a terminal job is a no-op.
func (c *Coordinator) Cancel(jobID, ownerID string) (domain.BulkJob, error) {
	c.mu.Lock()
	state, ok := c.jobs[jobID]
	if !ok || state.job.OwnerID != ownerID {
		c.mu.Unlock()
		return domain.BulkJob{}, domain.ErrNotFound
	}
	if state.job.Status.Terminal() {
		snap := snapshotLocked(state)
		c.mu.Unlock()
		return snap, nil
	}
	state.canceled = true
	snap := snapshotLocked(state)
	cancel := state.schedCancel
	c.mu.Unlock()

	cancel()
	c.logger.Info().Str("job_id", jobID).Msg("bulk: job canceled")
	return snap, nil
}

// Shutdown waits for running jobs to drain. When ctx expires first, in-flight
// generations are aborted through their context.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		c.baseCancel()
		return ctx.Err()
	case <-done:
		c.baseCancel()
		return nil
	}
}

func (c *Coordinator) run(state *jobState) {
	defer state.schedCancel()

	c.mu.Lock()
	state.job.Status = domain.BulkStatusRunning
	started := snapshotLocked(state)
	c.mu.Unlock()
	c.publish(domain.NewEvent(domain.EventBulkStarted, started.OwnerID, started))

	var wg sync.WaitGroup
	var launched int
	for i := range state.requests {
		if err := c.sem.Acquire(state.schedCtx, 1); err != nil {
			c.finishItem(state, i, nil, c.abortReason(state))
			continue
		}
		// Re-check after the acquire: a slot can free up after cancellation
		// or shutdown, and Acquire may still succeed on a done context.
		if reason := c.abortReason(state); reason != "" {
			c.sem.Release(1)
			c.finishItem(state, i, nil, reason)
			continue
		}

		launched++
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer c.sem.Release(1)
			result := c.generator.Generate(c.baseCtx, state.requests[i], c.chain)
			if result.Succeeded() {
				c.finishItem(state, i, result, "")
			} else {
				c.finishItem(state, i, result, result.Error)
			}
		}(i)
	}
	wg.Wait()

	// failed is reserved for jobs no item of which ever reached a worker
	// outside of an owner cancel. Once any item ran, the job lands on one of
	// the completed variants regardless of how many items errored.
	c.mu.Lock()
	now := time.Now().UTC()
	state.job.CompletedAt = &now
	switch {
	case state.job.Errors == 0:
		state.job.Status = domain.BulkStatusCompleted
	case launched == 0 && !state.canceled:
		state.job.Status = domain.BulkStatusFailed
	default:
		state.job.Status = domain.BulkStatusCompletedWithErrors
	}
	final := snapshotLocked(state)
	c.mu.Unlock()

	c.publish(domain.NewEvent(domain.EventBulkCompleted, final.OwnerID, final))
	c.logger.Info().
		Str("job_id", final.ID).
		Str("status", string(final.Status)).
		Int("completed", final.Completed).
		Int("errors", final.Errors).
		Msg("bulk: job finished")
}

// abortReason distinguishes why scheduling stopped: an owner cancel marks
// items as canceled, a coordinator shutdown marks them as an infrastructure
// failure. Empty means scheduling may proceed.
func (c *Coordinator) abortReason(state *jobState) string {
	c.mu.Lock()
	canceled := state.canceled
	c.mu.Unlock()
	if canceled {
		return domain.ErrJobCanceled.Error()
	}
	if c.baseCtx.Err() != nil {
		return domain.ErrInfrastructure.Error()
	}
	return ""
}

func (c *Coordinator) finishItem(state *jobState, i int, result *domain.GenerationResult, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := &state.job.Items[i]
	item.Result = result
	item.Error = errMsg
	if errMsg == "" {
		state.job.Completed++
	} else {
		state.job.Errors++
	}
}

func (c *Coordinator) publish(event domain.DomainEvent) {
	if c.events != nil {
		c.events.Publish(event)
	}
}

// snapshotLocked deep-copies the job so callers never observe later mutation.
// Caller holds Coordinator.mu.
func snapshotLocked(state *jobState) domain.BulkJob {
	job := state.job
	job.Items = make([]domain.BulkItem, len(state.job.Items))
	copy(job.Items, state.job.Items)
	for i := range job.Items {
		if job.Items[i].Result != nil {
			r := *job.Items[i].Result
			r.Attempts = append([]domain.ModelAttempt(nil), r.Attempts...)
			job.Items[i].Result = &r
		}
	}
	if state.job.CompletedAt != nil {
		t := *state.job.CompletedAt
		job.CompletedAt = &t
	}
	return job
}

func newJobID() string {
	return "bulk_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

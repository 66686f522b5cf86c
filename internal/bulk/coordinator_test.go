package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thealttext/internal/domain"
	"thealttext/internal/providers/vision"
)

type stubGenerator struct {
	mu      sync.Mutex
	active  int
	maxSeen int

	delay   time.Duration
	gate    chan struct{}
	started chan struct{}
	fail    func(req domain.GenerationRequest) bool
}

func (g *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest, chain []vision.Provider) *domain.GenerationResult {
	g.mu.Lock()
	g.active++
	if g.active > g.maxSeen {
		g.maxSeen = g.active
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.active--
		g.mu.Unlock()
	}()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	result := &domain.GenerationResult{RequestID: req.ID, CreatedAt: time.Now().UTC()}
	if g.fail != nil && g.fail(req) {
		result.Err = domain.ErrExhausted
		result.Error = "generation failed: all 2 providers failed"
		return result
	}
	result.AltText = "a calico cat sleeping on a sunny windowsill"
	result.Provider = "google/gemini-2.0-flash-exp:free"
	result.Confidence = 0.85
	return result
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *capturingPublisher) Publish(event domain.DomainEvent) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *capturingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func makeRequests(n int) []domain.GenerationRequest {
	reqs := make([]domain.GenerationRequest, n)
	for i := range reqs {
		reqs[i] = domain.GenerationRequest{
			Source:   domain.ImageSource{FileName: fmt.Sprintf("img-%02d.jpg", i)},
			Language: "en",
		}
	}
	return reqs
}

func waitTerminal(t *testing.T, c *Coordinator, jobID, ownerID string) domain.BulkJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := c.Status(jobID, ownerID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal status", jobID)
	return domain.BulkJob{}
}

func TestSubmitRejectsOutOfRangeBatches(t *testing.T) {
	c := NewCoordinator(&stubGenerator{}, nil, nil, testLogger(), Options{MaxImages: 100})

	if _, err := c.Submit(context.Background(), "owner-1", nil); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty batch: err = %v, want ErrValidation", err)
	}
	if _, err := c.Submit(context.Background(), "owner-1", makeRequests(101)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized batch: err = %v, want ErrValidation", err)
	}
}

func TestSubmitAssignsJobID(t *testing.T) {
	c := NewCoordinator(&stubGenerator{}, nil, nil, testLogger(), Options{})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.HasPrefix(job.ID, "bulk_") {
		t.Errorf("job id %q missing bulk_ prefix", job.ID)
	}
	if suffix := strings.TrimPrefix(job.ID, "bulk_"); len(suffix) != 12 {
		t.Errorf("job id suffix %q, want 12 characters", suffix)
	}
	waitTerminal(t, c, job.ID, "owner-1")
}

func TestJobCompletesWithAllResults(t *testing.T) {
	events := &capturingPublisher{}
	c := NewCoordinator(&stubGenerator{}, nil, events, testLogger(), Options{Workers: 3})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(7))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.BulkStatusQueued && job.Status != domain.BulkStatusRunning {
		t.Errorf("submit snapshot status = %q", job.Status)
	}

	final := waitTerminal(t, c, job.ID, "owner-1")
	if final.Status != domain.BulkStatusCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}
	if final.Completed != 7 || final.Errors != 0 {
		t.Errorf("completed/errors = %d/%d, want 7/0", final.Completed, final.Errors)
	}
	if final.CompletedAt == nil {
		t.Error("CompletedAt not set on terminal job")
	}
	for _, item := range final.Items {
		if item.Result == nil || item.Result.AltText == "" {
			t.Errorf("item %d has no result", item.Index)
		}
	}

	got := events.types()
	want := []domain.EventType{domain.EventBulkStarted, domain.EventBulkCompleted}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestPartialFailureCompletesWithErrors(t *testing.T) {
	gen := &stubGenerator{fail: func(req domain.GenerationRequest) bool {
		return strings.HasSuffix(req.Source.FileName, "02.jpg")
	}}
	c := NewCoordinator(gen, nil, nil, testLogger(), Options{Workers: 2})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(5))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := waitTerminal(t, c, job.ID, "owner-1")
	if final.Status != domain.BulkStatusCompletedWithErrors {
		t.Errorf("status = %q, want completed_with_errors", final.Status)
	}
	if final.Completed != 4 || final.Errors != 1 {
		t.Errorf("completed/errors = %d/%d, want 4/1", final.Completed, final.Errors)
	}
	if final.Items[2].Error == "" {
		t.Error("failed item carries no error")
	}
	if final.Items[2].Result == nil {
		t.Error("failed item should keep its attempt trail")
	}
}

func TestAllItemsFailingCompletesWithErrors(t *testing.T) {
	gen := &stubGenerator{fail: func(domain.GenerationRequest) bool { return true }}
	c := NewCoordinator(gen, nil, nil, testLogger(), Options{})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(3))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := waitTerminal(t, c, job.ID, "owner-1")
	if final.Status != domain.BulkStatusCompletedWithErrors {
		t.Errorf("status = %q, want completed_with_errors", final.Status)
	}
	if final.Completed != 0 || final.Errors != 3 {
		t.Errorf("completed/errors = %d/%d, want 0/3", final.Completed, final.Errors)
	}
}

func TestShutdownBeforeAnyItemStartsFailsJob(t *testing.T) {
	gen := &stubGenerator{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := NewCoordinator(gen, nil, nil, testLogger(), Options{Workers: 1})

	blocker, err := c.Submit(context.Background(), "owner-1", makeRequests(1))
	if err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}
	// The single worker is now held by the blocker job.
	<-gen.started

	starved, err := c.Submit(context.Background(), "owner-1", makeRequests(2))
	if err != nil {
		t.Fatalf("Submit starved: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = c.Shutdown(ctx)
	close(gen.gate)

	final := waitTerminal(t, c, starved.ID, "owner-1")
	if final.Status != domain.BulkStatusFailed {
		t.Errorf("starved job status = %q, want failed", final.Status)
	}
	for _, item := range final.Items {
		if !strings.Contains(item.Error, domain.ErrInfrastructure.Error()) {
			t.Errorf("item %d error = %q, want infrastructure failure", item.Index, item.Error)
		}
	}

	// The blocker's item already started, so its job stays on a completed
	// variant.
	blocked := waitTerminal(t, c, blocker.ID, "owner-1")
	if blocked.Status == domain.BulkStatusFailed {
		t.Errorf("blocker job status = %q, want a completed variant", blocked.Status)
	}
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	gen := &stubGenerator{delay: 20 * time.Millisecond}
	c := NewCoordinator(gen, nil, nil, testLogger(), Options{Workers: 2})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(10))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitTerminal(t, c, job.ID, "owner-1")

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.maxSeen > 2 {
		t.Errorf("observed %d concurrent generations, want at most 2", gen.maxSeen)
	}
}

func TestCancelSkipsUnstartedItems(t *testing.T) {
	gen := &stubGenerator{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 10),
	}
	c := NewCoordinator(gen, nil, nil, testLogger(), Options{Workers: 1})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(4))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// First item is in flight, the rest are waiting for the single worker.
	<-gen.started
	if _, err := c.Cancel(job.ID, "owner-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(gen.gate)

	final := waitTerminal(t, c, job.ID, "owner-1")
	if final.Status != domain.BulkStatusCompletedWithErrors {
		t.Errorf("status = %q, want completed_with_errors", final.Status)
	}
	if final.Completed != 1 || final.Errors != 3 {
		t.Errorf("completed/errors = %d/%d, want 1/3", final.Completed, final.Errors)
	}
	if final.Items[0].Result == nil || final.Items[0].Result.AltText == "" {
		t.Error("in-flight item lost its result after cancel")
	}
	for _, item := range final.Items[1:] {
		if !strings.Contains(item.Error, domain.ErrJobCanceled.Error()) {
			t.Errorf("item %d error = %q, want canceled", item.Index, item.Error)
		}
	}

	// Canceling again is a no-op on a terminal job.
	again, err := c.Cancel(job.ID, "owner-1")
	if err != nil {
		t.Fatalf("Cancel terminal: %v", err)
	}
	if again.Status != final.Status {
		t.Errorf("second cancel changed status to %q", again.Status)
	}
}

func TestStatusSnapshotsAreIsolated(t *testing.T) {
	c := NewCoordinator(&stubGenerator{}, nil, nil, testLogger(), Options{})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(2))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	final := waitTerminal(t, c, job.ID, "owner-1")

	final.Items[0].Error = "mutated"
	final.Items[0].Result.AltText = "mutated"

	fresh, err := c.Status(job.ID, "owner-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if fresh.Items[0].Error == "mutated" || fresh.Items[0].Result.AltText == "mutated" {
		t.Error("snapshot mutation leaked into coordinator state")
	}
}

func TestStatusScopesByOwner(t *testing.T) {
	c := NewCoordinator(&stubGenerator{}, nil, nil, testLogger(), Options{})

	job, err := c.Submit(context.Background(), "owner-1", makeRequests(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitTerminal(t, c, job.ID, "owner-1")

	if _, err := c.Status(job.ID, "owner-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign owner: err = %v, want ErrNotFound", err)
	}
	if _, err := c.Status("bulk_missing00000", "owner-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown job: err = %v, want ErrNotFound", err)
	}
}

package scan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"thealttext/internal/domain"
	"thealttext/internal/wcag"
)

const fixturePage = `<!DOCTYPE html>
<html>
<body>
  <img src="/hero.jpg" alt="A lighthouse on a rocky coast at sunset">
  <img src="/spacer.gif" alt="">
  <img src="/chart.png">
  <img src="/border.png" role="presentation" alt="decoration">
  <img src="/thumb.jpg" alt="photo">
</body>
</html>`

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *capturingPublisher) Publish(event domain.DomainEvent) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

type countingRecorder struct {
	mu    sync.Mutex
	pages int
}

func (r *countingRecorder) RecordScan(ownerID string, pages int) {
	r.mu.Lock()
	r.pages += pages
	r.mu.Unlock()
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestAuditClassifiesImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, fixturePage)
	}))
	defer server.Close()

	events := &capturingPublisher{}
	recorder := &countingRecorder{}
	auditor := NewAuditor(testLogger(), Options{Events: events, Recorder: recorder})

	report, err := auditor.Audit(context.Background(), "owner-1", server.URL)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}

	if report.TotalImages != 5 {
		t.Errorf("TotalImages = %d, want 5", report.TotalImages)
	}
	// Empty alt and role=presentation are decorative and exempt.
	if report.Decorative != 2 {
		t.Errorf("Decorative = %d, want 2", report.Decorative)
	}
	if report.MissingAlt != 1 {
		t.Errorf("MissingAlt = %d, want 1", report.MissingAlt)
	}
	if report.Compliant != 1 {
		t.Errorf("Compliant = %d, want 1", report.Compliant)
	}

	hero := report.Images[0]
	if hero.Assessment == nil || hero.Assessment.Status != wcag.StatusCompliant {
		t.Errorf("hero image assessment = %+v, want compliant", hero.Assessment)
	}
	missing := report.Images[2]
	if missing.Assessment == nil || missing.Assessment.Status != wcag.StatusMissing {
		t.Errorf("bare image assessment = %+v, want missing", missing.Assessment)
	}
	generic := report.Images[4]
	if generic.Assessment == nil || generic.Assessment.Score >= 80 {
		t.Errorf("generic alt scored %+v, want a deduction", generic.Assessment)
	}

	if report.Carbon.CO2Mg != 0.3 {
		t.Errorf("Carbon.CO2Mg = %v, want 0.3 for one page", report.Carbon.CO2Mg)
	}
	recorder.mu.Lock()
	pages := recorder.pages
	recorder.mu.Unlock()
	if pages != 1 {
		t.Errorf("recorded %d pages, want 1", pages)
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.events) != 2 ||
		events.events[0].Type != domain.EventScanStarted ||
		events.events[1].Type != domain.EventScanCompleted {
		t.Errorf("events = %+v, want scan.started then scan.completed", events.events)
	}
}

func TestAuditRejectsInvalidURL(t *testing.T) {
	auditor := NewAuditor(testLogger(), Options{})

	for _, raw := range []string{"", "not a url", "ftp://example.com", "/relative/path"} {
		if _, err := auditor.Audit(context.Background(), "owner-1", raw); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Audit(%q) err = %v, want ErrValidation", raw, err)
		}
	}
}

func TestAuditSurfacesUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	auditor := NewAuditor(testLogger(), Options{})
	if _, err := auditor.Audit(context.Background(), "owner-1", server.URL); err == nil {
		t.Fatal("Audit succeeded against a 503 page")
	}
}

func TestAuditEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html><body><p>no images here</p></body></html>")
	}))
	defer server.Close()

	auditor := NewAuditor(testLogger(), Options{})
	report, err := auditor.Audit(context.Background(), "owner-1", server.URL)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.TotalImages != 0 || report.AverageScore != 0 {
		t.Errorf("report = %+v, want zeroes for a page without images", report)
	}
}

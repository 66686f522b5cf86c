package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"thealttext/internal/bulk"
	"thealttext/internal/domain"
	"thealttext/internal/generation"
	"thealttext/internal/middleware"
	"thealttext/internal/providers/vision"
)

type successGateway struct {
	alt string
}

func (g *successGateway) Attempt(ctx context.Context, req domain.GenerationRequest, p vision.Provider) (domain.ModelAttempt, string) {
	return domain.ModelAttempt{
		RequestID: req.ID,
		OwnerID:   req.OwnerID,
		Provider:  p.Name,
		Tier:      p.Tier,
		Outcome:   domain.OutcomeSuccess,
		CarbonMg:  0.5,
	}, g.alt
}

type limitedGateway struct{}

func (g *limitedGateway) Attempt(ctx context.Context, req domain.GenerationRequest, p vision.Provider) (domain.ModelAttempt, string) {
	return domain.ModelAttempt{
		RequestID: req.ID,
		Provider:  p.Name,
		Tier:      p.Tier,
		Outcome:   domain.OutcomeRateLimited,
		Error:     "provider returned status 429",
	}, ""
}

func testApp(gw generation.Gateway) *App {
	logger := zerolog.New(io.Discard)
	executor := generation.NewExecutor(gw, nil, nil, logger)
	chain := []vision.Provider{{Name: "google/gemini-2.0-flash-exp:free", Tier: vision.TierFree}}
	return &App{
		Logger:   logger,
		Executor: executor,
		Chain:    chain,
		Bulk:     bulk.NewCoordinator(executor, chain, nil, logger, bulk.Options{Workers: 2}),
		Validate: validator.New(),
	}
}

func authed(req *http.Request, ownerID string) *http.Request {
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, chi.NewRouteContext())
	req = req.WithContext(ctx)
	if ownerID != "" {
		req = req.WithContext(contextWithOwner(req.Context(), ownerID))
	}
	return req
}

func contextWithOwner(ctx context.Context, ownerID string) context.Context {
	return middleware.ContextWithOwnerID(ctx, ownerID)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGenerateFromURL(t *testing.T) {
	app := testApp(&successGateway{alt: "A red bicycle leaning against a brick wall"})

	body := `{"image_url":"https://example.com/bike.jpg","tone":"casual"}`
	req := authed(httptest.NewRequest("POST", "/v1/images/analyze", strings.NewReader(body)), "owner-1")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	app.Generate(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want 200, body %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		AltText  string  `json:"alt_text"`
		Provider string  `json:"provider"`
		CarbonMg float64 `json:"carbon_mg"`
		WCAG     struct {
			Score  float64 `json:"score"`
			Status string  `json:"status"`
		} `json:"wcag"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.AltText != "A red bicycle leaning against a brick wall" {
		t.Fatalf("unexpected alt text: %q", payload.AltText)
	}
	if payload.Provider != "google/gemini-2.0-flash-exp:free" {
		t.Fatalf("unexpected provider: %q", payload.Provider)
	}
	if payload.CarbonMg != 0.5 {
		t.Fatalf("unexpected carbon: %v", payload.CarbonMg)
	}
	if payload.WCAG.Status != "compliant" {
		t.Fatalf("unexpected wcag status: %q", payload.WCAG.Status)
	}
}

func TestGenerateRequiresExactlyOneSource(t *testing.T) {
	app := testApp(&successGateway{alt: "irrelevant"})

	for _, body := range []string{
		`{}`,
		`{"image_url":"https://example.com/a.jpg","image_data":"aGVsbG8="}`,
	} {
		req := authed(httptest.NewRequest("POST", "/v1/images/analyze", strings.NewReader(body)), "owner-1")
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		app.Generate(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: got %d, want 400", body, rr.Code)
		}
	}
}

func TestGenerateUnauthorized(t *testing.T) {
	app := testApp(&successGateway{alt: "irrelevant"})

	req := authed(httptest.NewRequest("POST", "/v1/images/analyze", strings.NewReader(`{"image_url":"https://example.com/a.jpg"}`)), "")
	rr := httptest.NewRecorder()
	app.Generate(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}
}

func TestGenerateExhaustedChainReturnsBadGateway(t *testing.T) {
	app := testApp(&limitedGateway{})

	req := authed(httptest.NewRequest("POST", "/v1/images/analyze", strings.NewReader(`{"image_url":"https://example.com/a.jpg"}`)), "owner-1")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.Generate(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502", rr.Code)
	}
	var payload struct {
		Error    errorResponse         `json:"error"`
		Attempts []domain.ModelAttempt `json:"attempts"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "providers_exhausted" {
		t.Fatalf("unexpected error code: %q", payload.Error.Code)
	}
	if len(payload.Attempts) != 1 {
		t.Fatalf("expected the attempt trail, got %d attempts", len(payload.Attempts))
	}
}

func TestWCAGCheck(t *testing.T) {
	app := testApp(&successGateway{})

	req := httptest.NewRequest("POST", "/v1/wcag/check", strings.NewReader(`{"alt_text":"photo"}`))
	rr := httptest.NewRecorder()
	app.WCAGCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var payload struct {
		Score  float64  `json:"score"`
		Status string   `json:"status"`
		Issues []string `json:"issues"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "non_compliant" {
		t.Fatalf("unexpected status: %q (score %v)", payload.Status, payload.Score)
	}
	if len(payload.Issues) == 0 {
		t.Fatal("expected issues for generic alt text")
	}
}

func TestBulkLifecycle(t *testing.T) {
	app := testApp(&successGateway{alt: "A stack of pancakes with maple syrup"})

	body := `{"images":[{"image_url":"https://example.com/1.jpg"},{"image_url":"https://example.com/2.jpg"},{"image_url":"https://example.com/3.jpg"}]}`
	req := authed(httptest.NewRequest("POST", "/v1/bulk", strings.NewReader(body)), "owner-1")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.BulkSubmit(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("submit: got %d, want 202, body %s", rr.Code, rr.Body.String())
	}
	var job domain.BulkJob
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if !strings.HasPrefix(job.ID, "bulk_") {
		t.Fatalf("unexpected job id: %q", job.ID)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		statusReq := withURLParam(httptest.NewRequest("GET", "/v1/bulk/"+job.ID, nil), "job_id", job.ID)
		statusReq = statusReq.WithContext(contextWithOwner(statusReq.Context(), "owner-1"))
		statusRR := httptest.NewRecorder()
		app.BulkStatus(statusRR, statusReq)
		if statusRR.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", statusRR.Code)
		}
		if err := json.NewDecoder(statusRR.Body).Decode(&job); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if job.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never finished, status %q", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if job.Status != domain.BulkStatusCompleted || job.Completed != 3 {
		t.Fatalf("unexpected final job: status %q completed %d", job.Status, job.Completed)
	}
}

func TestBulkSubmitRejectsEmptyBatch(t *testing.T) {
	app := testApp(&successGateway{})

	req := authed(httptest.NewRequest("POST", "/v1/bulk", strings.NewReader(`{"images":[]}`)), "owner-1")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.BulkSubmit(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestBulkStatusScopedToOwner(t *testing.T) {
	app := testApp(&successGateway{alt: "A quiet mountain lake at dawn"})

	body := `{"images":[{"image_url":"https://example.com/1.jpg"}]}`
	req := authed(httptest.NewRequest("POST", "/v1/bulk", strings.NewReader(body)), "owner-1")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	app.BulkSubmit(rr, req)
	var job domain.BulkJob
	if err := json.NewDecoder(rr.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}

	statusReq := withURLParam(httptest.NewRequest("GET", "/v1/bulk/"+job.ID, nil), "job_id", job.ID)
	statusReq = statusReq.WithContext(contextWithOwner(statusReq.Context(), "owner-2"))
	statusRR := httptest.NewRecorder()
	app.BulkStatus(statusRR, statusReq)
	if statusRR.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404 for a foreign owner", statusRR.Code)
	}
}

func TestWebhookEventTypes(t *testing.T) {
	app := testApp(&successGateway{})

	req := httptest.NewRequest("GET", "/v1/webhooks/events", nil)
	rr := httptest.NewRecorder()
	app.WebhookEventTypes(rr, req)

	var payload struct {
		Events []string `json:"events"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Events) != len(domain.EventCatalog) {
		t.Fatalf("expected %d event types, got %d", len(domain.EventCatalog), len(payload.Events))
	}
}

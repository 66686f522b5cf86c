package scan

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"thealttext/internal/domain"
	"thealttext/internal/infra"
	"thealttext/internal/usage"
	"thealttext/internal/wcag"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodyBytes = 5 << 20
)

// Publisher accepts domain events for asynchronous webhook delivery.
type Publisher interface {
	Publish(event domain.DomainEvent)
}

// Recorder bills scanned pages against the owner's carbon ledger.
type Recorder interface {
	RecordScan(ownerID string, pages int)
}

// ImageFinding describes one img element found on the scanned page.
type ImageFinding struct {
	Src        string           `json:"src"`
	Alt        string           `json:"alt"`
	HasAlt     bool             `json:"has_alt"`
	Decorative bool             `json:"decorative"`
	Assessment *wcag.Assessment `json:"assessment,omitempty"`
}

// Report is the accessibility audit of a single page.
type Report struct {
	URL          string               `json:"url"`
	ScannedAt    time.Time            `json:"scanned_at"`
	TotalImages  int                  `json:"total_images"`
	MissingAlt   int                  `json:"missing_alt"`
	Decorative   int                  `json:"decorative"`
	Compliant    int                  `json:"compliant"`
	AverageScore float64              `json:"average_score"`
	Images       []ImageFinding       `json:"images"`
	Carbon       usage.CarbonEstimate `json:"carbon"`
}

// Auditor fetches one page and audits every img element for alt text
// compliance. It does not follow links; a scan covers exactly the page given.
type Auditor struct {
	httpClient *http.Client
	events     Publisher
	recorder   Recorder
	logger     infra.Logger
}

// Options configures optional collaborators of the auditor.
type Options struct {
	HTTPClient *http.Client
	Events     Publisher
	Recorder   Recorder
}

func NewAuditor(logger infra.Logger, opts Options) *Auditor {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: fetchTimeout}
	}
	return &Auditor{
		httpClient: opts.HTTPClient,
		events:     opts.Events,
		recorder:   opts.Recorder,
		logger:     logger,
	}
}

// Audit fetches rawURL and scores each image's alt text. Decorative images,
// marked by an explicitly empty alt or a presentation role, are exempt from
// scoring per WCAG guidance.
func (a *Auditor) Audit(ctx context.Context, ownerID, rawURL string) (*Report, error) {
	target, err := url.Parse(rawURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: scan requires an absolute http(s) url", domain.ErrValidation)
	}

	a.publish(domain.NewEvent(domain.EventScanStarted, ownerID, map[string]string{"url": target.String()}))

	doc, err := a.fetch(ctx, target.String())
	if err != nil {
		return nil, err
	}

	report := &Report{
		URL:       target.String(),
		ScannedAt: time.Now().UTC(),
	}

	var scoreSum float64
	var scored int
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		finding := ImageFinding{}
		finding.Src, _ = sel.Attr("src")
		alt, hasAlt := sel.Attr("alt")
		finding.Alt = strings.TrimSpace(alt)
		finding.HasAlt = hasAlt

		role, _ := sel.Attr("role")
		if (hasAlt && finding.Alt == "") || role == "presentation" || role == "none" {
			finding.Decorative = true
			report.Decorative++
			report.Images = append(report.Images, finding)
			return
		}

		assessment := wcag.Analyze(finding.Alt)
		finding.Assessment = &assessment
		if !hasAlt {
			report.MissingAlt++
		}
		if assessment.Status == wcag.StatusCompliant {
			report.Compliant++
		}
		scoreSum += assessment.Score
		scored++
		report.Images = append(report.Images, finding)
	})

	report.TotalImages = len(report.Images)
	if scored > 0 {
		report.AverageScore = math.Round(scoreSum/float64(scored)*10) / 10
	}
	report.Carbon = usage.EstimateFor("web_scan_page", 1)

	if a.recorder != nil {
		a.recorder.RecordScan(ownerID, 1)
	}
	a.publish(domain.NewEvent(domain.EventScanCompleted, ownerID, report))
	a.logger.Info().
		Str("url", report.URL).
		Int("images", report.TotalImages).
		Int("missing_alt", report.MissingAlt).
		Msg("scan: page audited")
	return report, nil
}

func (a *Auditor) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scan: build request: %w", err)
	}
	req.Header.Set("User-Agent", "TheAltText-Scanner/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan: fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("scan: page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("scan: parse html: %w", err)
	}
	return doc, nil
}

func (a *Auditor) publish(event domain.DomainEvent) {
	if a.events != nil {
		a.events.Publish(event)
	}
}

package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"thealttext/internal/domain"
	"thealttext/internal/middleware"
	"thealttext/internal/usage"
	"thealttext/internal/wcag"
)

const maxUploadBytes = 10 << 20

type generateRequest struct {
	ImageURL   string `json:"image_url" validate:"omitempty,url"`
	ImageData  string `json:"image_data" validate:"omitempty,base64"`
	MIMEType   string `json:"mime_type"`
	FileName   string `json:"file_name"`
	Language   string `json:"language"`
	Tone       string `json:"tone" validate:"omitempty,oneof=formal casual technical simple"`
	WCAGLevel  string `json:"wcag_level" validate:"omitempty,oneof=A AA AAA"`
	SEOContext string `json:"context" validate:"omitempty,max=500"`
}

type generateResponse struct {
	*domain.GenerationResult
	WCAG     wcag.Assessment     `json:"wcag"`
	CarbonMg float64             `json:"carbon_mg"`
	Carbon   usage.CarbonDisplay `json:"carbon"`
}

// Generate produces alt text for a single image, given either by URL or as
// uploaded bytes. Accepts JSON or multipart form encoding.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	req, err := a.parseGenerateRequest(r)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := a.validate(req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	genReq, err := a.buildGenerationRequest(ownerID, r, req)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result := a.Executor.Generate(r.Context(), genReq, a.Chain)
	if !result.Succeeded() {
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":    errorResponse{Code: "providers_exhausted", Message: result.Error},
			"attempts": result.Attempts,
		})
		return
	}

	a.archiveUpload(r, ownerID, genReq)
	a.json(w, http.StatusOK, generateResponse{
		GenerationResult: result,
		WCAG:             wcag.Analyze(result.AltText),
		CarbonMg:         attemptCarbon(result),
		Carbon:           usage.FormatCarbon(attemptCarbon(result)),
	})
}

func (a *App) parseGenerateRequest(r *http.Request) (*generateRequest, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		return a.parseGenerateForm(r)
	}
	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid payload")
	}
	return &req, nil
}

func (a *App) parseGenerateForm(r *http.Request) (*generateRequest, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}
	req := &generateRequest{
		ImageURL:   r.FormValue("image_url"),
		Language:   r.FormValue("language"),
		Tone:       r.FormValue("tone"),
		WCAGLevel:  r.FormValue("wcag_level"),
		SEOContext: r.FormValue("context"),
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return req, nil
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image")
	}
	req.ImageData = base64.StdEncoding.EncodeToString(data)
	req.MIMEType = header.Header.Get("Content-Type")
	req.FileName = header.Filename
	return req, nil
}

func (a *App) buildGenerationRequest(ownerID string, r *http.Request, req *generateRequest) (domain.GenerationRequest, error) {
	if (req.ImageURL == "") == (req.ImageData == "") {
		return domain.GenerationRequest{}, fmt.Errorf("exactly one of image_url or image_data is required")
	}

	source := domain.ImageSource{
		URL:      req.ImageURL,
		MIMEType: req.MIMEType,
		FileName: req.FileName,
	}
	if req.ImageData != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil {
			return domain.GenerationRequest{}, fmt.Errorf("image_data is not valid base64")
		}
		source.Data = data
		if source.MIMEType == "" {
			source.MIMEType = "image/jpeg"
		}
	}

	language := req.Language
	if language == "" {
		language = middleware.LanguageFromContext(r.Context())
	}
	wcagLevel := req.WCAGLevel
	if wcagLevel == "" {
		wcagLevel = "AA"
	}

	return domain.GenerationRequest{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Source:     source,
		Language:   language,
		Tone:       req.Tone,
		WCAGLevel:  wcagLevel,
		SEOContext: req.SEOContext,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// archiveUpload keeps a copy of uploaded bytes for the owner's history.
// Failures are logged, never surfaced.
func (a *App) archiveUpload(r *http.Request, ownerID string, req domain.GenerationRequest) {
	if a.Files == nil || len(req.Source.Data) == 0 {
		return
	}
	ext := filepath.Ext(req.Source.FileName)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("uploads/%s/%s%s", ownerID, req.ID, ext)
	if _, err := a.Files.Write(r.Context(), key, req.Source.Data); err != nil {
		a.Logger.Warn().Err(err).Str("request_id", req.ID).Msg("handler: archive upload failed")
	}
}

func attemptCarbon(result *domain.GenerationResult) float64 {
	var total float64
	for _, attempt := range result.Attempts {
		total += attempt.CarbonMg
	}
	return total
}

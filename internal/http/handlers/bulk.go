package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"thealttext/internal/domain"
	"thealttext/internal/middleware"
)

type bulkImageRequest struct {
	ImageURL  string `json:"image_url" validate:"omitempty,url"`
	ImageData string `json:"image_data" validate:"omitempty,base64"`
	MIMEType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
}

type bulkSubmitRequest struct {
	Images     []bulkImageRequest `json:"images" validate:"required,min=1,max=100,dive"`
	Language   string             `json:"language"`
	Tone       string             `json:"tone" validate:"omitempty,oneof=formal casual technical simple"`
	WCAGLevel  string             `json:"wcag_level" validate:"omitempty,oneof=A AA AAA"`
	SEOContext string             `json:"context" validate:"omitempty,max=500"`
}

// BulkSubmit queues up to 100 images as one job and returns immediately with
// the job id for polling.
func (a *App) BulkSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req bulkSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	language := req.Language
	if language == "" {
		language = middleware.LanguageFromContext(r.Context())
	}
	wcagLevel := req.WCAGLevel
	if wcagLevel == "" {
		wcagLevel = "AA"
	}

	requests := make([]domain.GenerationRequest, len(req.Images))
	for i, img := range req.Images {
		if (img.ImageURL == "") == (img.ImageData == "") {
			a.error(w, http.StatusBadRequest, "bad_request",
				fmt.Sprintf("image %d: exactly one of image_url or image_data is required", i))
			return
		}
		source := domain.ImageSource{URL: img.ImageURL, MIMEType: img.MIMEType, FileName: img.FileName}
		if img.ImageData != "" {
			data, err := base64.StdEncoding.DecodeString(img.ImageData)
			if err != nil {
				a.error(w, http.StatusBadRequest, "bad_request",
					fmt.Sprintf("image %d: image_data is not valid base64", i))
				return
			}
			source.Data = data
		}
		requests[i] = domain.GenerationRequest{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			Source:     source,
			Language:   language,
			Tone:       req.Tone,
			WCAGLevel:  wcagLevel,
			SEOContext: req.SEOContext,
			CreatedAt:  time.Now().UTC(),
		}
	}

	job, err := a.Bulk.Submit(r.Context(), ownerID, requests)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, job)
}

// BulkStatus returns the current snapshot of a job, including per-item results.
func (a *App) BulkStatus(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Bulk.Status(jobID, ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

// BulkCancel stops scheduling remaining items of a job. In-flight items finish.
func (a *App) BulkCancel(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Bulk.Cancel(jobID, ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, job)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"videogen/internal/domain"
	"videogen/internal/middleware"
	"videogen/internal/pipeline"
)

const maxBodyBytes = 1 << 20

type generateRequest struct {
	JobID           string   `json:"jobId"`
	Prompt          string   `json:"prompt"`
	ImagePaths      []string `json:"imagePaths"`
	AspectRatio     string   `json:"aspectRatio"`
	Resolution      string   `json:"resolution"`
	DurationSeconds int      `json:"durationSeconds"`
}

func (g generateRequest) toPipeline() pipeline.Request {
	return pipeline.Request{
		JobID: strings.TrimSpace(g.JobID),
		Generation: domain.GenerationRequest{
			Prompt:          strings.TrimSpace(g.Prompt),
			ImagePaths:      g.ImagePaths,
			AspectRatio:     strings.TrimSpace(g.AspectRatio),
			Resolution:      strings.TrimSpace(g.Resolution),
			DurationSeconds: g.DurationSeconds,
		},
	}
}

type jobStatusResponse struct {
	JobID    string           `json:"jobId"`
	Status   domain.JobStatus `json:"status"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// decodeGenerate reads and validates the body. requireID controls whether a
// missing jobId is an error or gets minted.
func decodeGenerate(w http.ResponseWriter, r *http.Request, requireID bool) (pipeline.Request, error) {
	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return pipeline.Request{JobID: strings.TrimSpace(body.JobID)}, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidRequest)
	}
	req := body.toPipeline()
	if req.JobID == "" {
		if requireID {
			return req, fmt.Errorf("%w: jobId is required", domain.ErrInvalidRequest)
		}
		req.JobID = uuid.NewString()
	}
	if err := req.Generation.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func (a *App) rejected(w http.ResponseWriter, jobID string, err error) {
	a.json(w, http.StatusBadRequest, pipeline.Result{
		JobID:   jobID,
		Status:  domain.JobStatusFailed,
		Message: err.Error(),
	})
}

// GenerateVideoVeo runs the Veo job inside the request and returns its
// terminal result.
func (a *App) GenerateVideoVeo(w http.ResponseWriter, r *http.Request) {
	a.runSync(w, r, a.Veo)
}

// GenerateVideoFrames runs the demo frame pipeline synchronously.
func (a *App) GenerateVideoFrames(w http.ResponseWriter, r *http.Request) {
	if a.Frames == nil {
		a.error(w, http.StatusNotFound, "not_found", "frame pipeline is disabled")
		return
	}
	a.runSync(w, r, a.Frames)
}

func (a *App) runSync(w http.ResponseWriter, r *http.Request, runner Runner) {
	req, err := decodeGenerate(w, r, true)
	if err != nil {
		a.rejected(w, req.JobID, err)
		return
	}
	// The job must reach a terminal status even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	res := runner.Run(ctx, req)
	a.json(w, http.StatusOK, res)
}

// SubmitJob accepts a Veo job for background execution.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerate(w, r, false)
	if err != nil {
		a.rejected(w, req.JobID, err)
		return
	}
	if a.Pool == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "background workers are not configured")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	logger := middleware.LoggerFromContext(r.Context())
	err = a.Pool.Submit(func() {
		res := a.Veo.Run(ctx, req)
		logger.Info().Str("job_id", res.JobID).Str("status", string(res.Status)).Msg("background job finished")
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			a.error(w, http.StatusServiceUnavailable, "busy", "all video workers are busy, retry later")
			return
		}
		a.error(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	a.json(w, http.StatusAccepted, jobStatusResponse{JobID: req.JobID, Status: domain.JobStatusProcessing})
}

// JobStatus reports the last-known record of a job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "job_id"))
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	if a.Jobs == nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	job, err := a.Jobs.Get(r.Context(), jobID)
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Warn().Err(err).Str("job_id", jobID).Msg("job status lookup failed")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "job store unavailable")
		return
	}
	a.json(w, http.StatusOK, jobStatusResponse{JobID: job.ID, Status: job.Status, Metadata: job.Metadata})
}

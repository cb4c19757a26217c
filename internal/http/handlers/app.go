package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"videogen/internal/domain"
	"videogen/internal/pipeline"
)

// Runner executes one accepted job to a terminal status.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

// JobReader reads the last-known record of a job.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// Submitter schedules background work. *ants.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

type App struct {
	Veo Runner
	// Frames is nil unless the frame pipeline is enabled.
	Frames Runner
	Jobs   JobReader
	Pool   Submitter
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorResponse{Error: kind, Message: msg})
}

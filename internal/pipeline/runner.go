// Package pipeline sequences one generation request: generate, upload,
// record status and notify.
package pipeline

import (
	"context"
	"fmt"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/storage"
)

// Generator materializes a video for a request and returns its local path.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// Cleaner is implemented by generators that leave per-call temp state behind.
type Cleaner interface {
	Cleanup(path string) error
}

// StatusSink records job status. Implementations must not fail the caller.
type StatusSink interface {
	SetStatus(ctx context.Context, jobID string, status domain.JobStatus, data map[string]any)
}

// Notifier delivers the terminal outcome. Implementations must not fail the
// caller.
type Notifier interface {
	Notify(ctx context.Context, jobID string, payload map[string]any)
}

// Request is one accepted job.
type Request struct {
	JobID      string
	Generation domain.GenerationRequest
}

// Result is the response contract returned to callers.
type Result struct {
	JobID      string           `json:"jobId"`
	Status     domain.JobStatus `json:"status"`
	VideoURL   string           `json:"video_url,omitempty"`
	StorageKey string           `json:"storage_key,omitempty"`
	Message    string           `json:"message,omitempty"`
}

type Deps struct {
	Generator Generator
	Uploader  storage.Uploader
	Status    StatusSink
	Notifier  Notifier
	Defaults  domain.GenerationDefaults
	Logger    *infra.Logger
}

// Runner executes requests. It holds no per-job state and is safe for
// concurrent use.
type Runner struct {
	generator Generator
	uploader  storage.Uploader
	status    StatusSink
	notifier  Notifier
	defaults  domain.GenerationDefaults
	logger    infra.Logger
}

func NewRunner(deps Deps) *Runner {
	logger := infra.NopLogger()
	if deps.Logger != nil {
		logger = *deps.Logger
	}
	status := deps.Status
	if status == nil {
		status = nopSink{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopSink{}
	}
	return &Runner{
		generator: deps.Generator,
		uploader:  deps.Uploader,
		status:    status,
		notifier:  notifier,
		defaults:  deps.Defaults,
		logger:    infra.Component(logger, "pipeline"),
	}
}

// GeneratorName returns the name of the configured generator.
func (r *Runner) GeneratorName() string {
	if r.generator == nil {
		return ""
	}
	return r.generator.Name()
}

// Defaults returns the generation fallbacks applied before each run.
func (r *Runner) Defaults() domain.GenerationDefaults { return r.defaults }

// Run drives req to a terminal status. It never returns an error and never
// panics; every failure is reported in the Result.
func (r *Runner) Run(ctx context.Context, req Request) (res Result) {
	j := &job{
		runner: r,
		life:   domain.NewLifecycle(req.JobID),
		logger: r.logger.With().Str("job_id", req.JobID).Logger(),
	}

	var localPath string
	defer func() {
		if rec := recover(); rec != nil {
			j.logger.Error().Interface("panic", rec).Msg("pipeline: run panicked")
			res = j.fail(ctx, fmt.Errorf("internal error: %v", rec))
		}
		r.cleanup(j, localPath)
	}()

	if r.generator == nil || r.uploader == nil {
		j.advance(ctx, domain.JobStatusProcessing, map[string]any{"step": domain.StartStep("pipeline")})
		return j.fail(ctx, fmt.Errorf("%w: pipeline is not configured", domain.ErrConfiguration))
	}

	gen := r.defaults.Apply(req.Generation)
	j.advance(ctx, domain.JobStatusProcessing, map[string]any{"step": domain.StartStep(r.generator.Name())})

	path, err := r.generator.Generate(ctx, gen)
	if err != nil {
		return j.fail(ctx, err)
	}
	localPath = path

	j.advance(ctx, domain.JobStatusProcessing, map[string]any{"step": domain.StepUpload})
	uploaded, err := r.uploader.Upload(ctx, path)
	if err != nil {
		return j.fail(ctx, err)
	}

	data := map[string]any{
		"video_url":   uploaded.URL,
		"storage_key": uploaded.ID,
	}
	j.done = &Result{
		JobID:      req.JobID,
		Status:     domain.JobStatusCompleted,
		VideoURL:   uploaded.URL,
		StorageKey: uploaded.ID,
	}
	j.advance(ctx, domain.JobStatusCompleted, data)
	j.notify(ctx, domain.JobStatusCompleted, data)
	j.logger.Info().Str("video_url", uploaded.URL).Msg("pipeline: job completed")

	return *j.done
}

func (r *Runner) cleanup(j *job, path string) {
	if path == "" {
		return
	}
	c, ok := r.generator.(Cleaner)
	if !ok {
		return
	}
	if err := c.Cleanup(path); err != nil {
		j.logger.Warn().Err(err).Str("path", path).Msg("pipeline: temp cleanup failed")
	}
}

// job tracks one run so the terminal write and the notification happen
// exactly once even when a panic interrupts the sequence.
type job struct {
	runner   *Runner
	life     *domain.Lifecycle
	logger   infra.Logger
	notified bool
	done     *Result
}

func (j *job) advance(ctx context.Context, to domain.JobStatus, data map[string]any) bool {
	if err := j.life.Advance(to); err != nil {
		j.logger.Warn().Err(err).Msg("pipeline: status transition rejected")
		return false
	}
	j.runner.status.SetStatus(ctx, j.life.JobID(), to, data)
	return true
}

func (j *job) notify(ctx context.Context, status domain.JobStatus, data map[string]any) {
	if j.notified {
		return
	}
	j.notified = true
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	payload["status"] = string(status)
	j.runner.notifier.Notify(ctx, j.life.JobID(), payload)
}

func (j *job) fail(ctx context.Context, err error) Result {
	if j.done != nil {
		// A sink panicked after the upload succeeded; the outcome stands.
		return *j.done
	}
	msg := err.Error()
	res := Result{JobID: j.life.JobID(), Status: domain.JobStatusFailed, Message: msg}
	if j.life.Status().IsTerminal() {
		return res
	}
	if j.life.Status() == "" {
		j.advance(ctx, domain.JobStatusProcessing, nil)
	}
	kind := domain.ErrorKind(err)
	j.advance(ctx, domain.JobStatusFailed, map[string]any{"error": msg, "error_kind": kind})
	j.notify(ctx, domain.JobStatusFailed, map[string]any{"error": msg})
	j.logger.Warn().Err(err).Str("error_kind", kind).Msg("pipeline: job failed")
	return res
}

type nopSink struct{}

func (nopSink) SetStatus(context.Context, string, domain.JobStatus, map[string]any) {}

func (nopSink) Notify(context.Context, string, map[string]any) {}

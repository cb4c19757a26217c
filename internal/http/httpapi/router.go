package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"videogen/internal/http/handlers"
	"videogen/internal/infra"
	"videogen/internal/middleware"
)

type Options struct {
	// RateLimitPerMin caps generation requests per client IP; 0 disables.
	RateLimitPerMin int
	// StaticDir is served under /static/ when set (local storage backend).
	StaticDir string
}

func NewRouter(app *handlers.App, logger infra.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/generate_video_veo", app.GenerateVideoVeo)
		r.Post("/generate_video_frames", app.GenerateVideoFrames)
		r.Post("/v1/jobs", app.SubmitJob)
	})
	r.Get("/v1/jobs/{job_id}", app.JobStatus)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Handle("/static/*", fs)
	}

	return r
}

package domain

import (
	"fmt"
	"strings"
)

// Provider-constrained generation options.
var (
	AspectRatios    = []string{"16:9", "9:16"}
	Resolutions     = []string{"720p", "1080p"}
	DurationSeconds = []int{4, 6, 8}
)

// DefaultDurationSeconds applies when neither the caller nor the environment
// picks a clip length.
const DefaultDurationSeconds = 8

// GenerationRequest is immutable once submitted. Empty option fields mean the
// caller did not choose one.
type GenerationRequest struct {
	Prompt          string
	ImagePaths      []string
	AspectRatio     string
	Resolution      string
	DurationSeconds int
}

// Validate checks the prompt and the option enums.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if r.AspectRatio != "" && !containsString(AspectRatios, r.AspectRatio) {
		return fmt.Errorf("%w: aspectRatio must be one of %s", ErrInvalidRequest, strings.Join(AspectRatios, ", "))
	}
	if r.Resolution != "" && !containsString(Resolutions, r.Resolution) {
		return fmt.Errorf("%w: resolution must be one of %s", ErrInvalidRequest, strings.Join(Resolutions, ", "))
	}
	if r.DurationSeconds != 0 && !ValidDuration(r.DurationSeconds) {
		return fmt.Errorf("%w: durationSeconds must be one of 4, 6, 8", ErrInvalidRequest)
	}
	return nil
}

// GenerationDefaults holds the environment-sourced fallbacks applied by the
// request handler before the generation client sees the request.
type GenerationDefaults struct {
	AspectRatio     string
	Resolution      string
	DurationSeconds int
}

// Apply fills options the caller left empty.
func (d GenerationDefaults) Apply(req GenerationRequest) GenerationRequest {
	out := req
	out.ImagePaths = append([]string(nil), req.ImagePaths...)
	if out.AspectRatio == "" {
		out.AspectRatio = d.AspectRatio
	}
	if out.Resolution == "" {
		out.Resolution = d.Resolution
	}
	if out.DurationSeconds == 0 {
		out.DurationSeconds = d.DurationSeconds
	}
	if out.DurationSeconds == 0 {
		out.DurationSeconds = DefaultDurationSeconds
	}
	return out
}

// ValidAspectRatio reports whether v is accepted by the provider.
func ValidAspectRatio(v string) bool { return containsString(AspectRatios, v) }

// ValidResolution reports whether v is accepted by the provider.
func ValidResolution(v string) bool { return containsString(Resolutions, v) }

// ValidDuration reports whether v is accepted by the provider.
func ValidDuration(v int) bool {
	for _, d := range DurationSeconds {
		if d == v {
			return true
		}
	}
	return false
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

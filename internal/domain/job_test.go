package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestLifecycleMonotonic(t *testing.T) {
	lc := NewLifecycle("j1")
	if err := lc.Advance(JobStatusProcessing); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := lc.Advance(JobStatusProcessing); err != nil {
		t.Fatalf("processing again: %v", err)
	}
	if err := lc.Advance(JobStatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for _, next := range []JobStatus{JobStatusProcessing, JobStatusFailed, JobStatusCompleted} {
		if err := lc.Advance(next); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Advance(%s) after completed = %v, want ErrInvalidTransition", next, err)
		}
	}
	if lc.Status() != JobStatusCompleted {
		t.Fatalf("status = %q, want completed", lc.Status())
	}
}

func TestLifecycleMustStartProcessing(t *testing.T) {
	lc := NewLifecycle("j1")
	if err := lc.Advance(JobStatusFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if err := lc.Advance(JobStatus("queued")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status err = %v", err)
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		req     GenerationRequest
		wantErr bool
	}{
		{name: "prompt_only", req: GenerationRequest{Prompt: "a cat on a skateboard"}},
		{name: "all_options", req: GenerationRequest{Prompt: "x", AspectRatio: "9:16", Resolution: "1080p", DurationSeconds: 6}},
		{name: "empty_prompt", req: GenerationRequest{Prompt: "  "}, wantErr: true},
		{name: "bad_aspect", req: GenerationRequest{Prompt: "x", AspectRatio: "4:3"}, wantErr: true},
		{name: "bad_resolution", req: GenerationRequest{Prompt: "x", Resolution: "4k"}, wantErr: true},
		{name: "bad_duration", req: GenerationRequest{Prompt: "x", DurationSeconds: 5}, wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.req.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Fatalf("err = %v, want ErrInvalidRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGenerationDefaultsApply(t *testing.T) {
	defaults := GenerationDefaults{AspectRatio: "16:9", Resolution: "720p"}

	got := defaults.Apply(GenerationRequest{Prompt: "p", Resolution: "1080p"})
	if got.AspectRatio != "16:9" || got.Resolution != "1080p" || got.DurationSeconds != DefaultDurationSeconds {
		t.Fatalf("Apply = %+v", got)
	}

	got = GenerationDefaults{}.Apply(GenerationRequest{Prompt: "p", DurationSeconds: 4})
	if got.AspectRatio != "" || got.Resolution != "" || got.DurationSeconds != 4 {
		t.Fatalf("Apply without env = %+v", got)
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"configuration": fmt.Errorf("%w: GOOGLE_API_KEY missing", ErrConfiguration),
		"timeout":       fmt.Errorf("poll: %w", context.DeadlineExceeded),
		"empty_result":  fmt.Errorf("%w: no videos", ErrEmptyResult),
		"download":      fmt.Errorf("%w: eof", ErrDownload),
		"upload":        fmt.Errorf("%w: 500", ErrUpload),
		"provider":      fmt.Errorf("%w: quota", ErrProviderFailure),
		"internal":      errors.New("boom"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
	if ErrorKind(nil) != "" {
		t.Fatal("ErrorKind(nil) should be empty")
	}
}

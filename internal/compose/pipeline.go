// Package compose builds a demo video from placeholder frames and a
// narrated script, muxed with ffmpeg. It is enabled by
// ENABLE_FRAME_PIPELINE and runs through the same job lifecycle as Veo.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

const (
	tempDirPrefix  = "frames_"
	outputFileName = "frames_output.mp4"
)

type scriptWriter interface {
	Write(ctx context.Context, prompt string) (string, error)
}

type frameRenderer interface {
	Render(ctx context.Context, prompt, dir string) ([]string, error)
}

type composer interface {
	Compose(ctx context.Context, frames []string, audioPath, outPath string) error
}

type Options struct {
	Script   scriptWriter
	Narrator Narrator
	Frames   frameRenderer
	Composer composer
	TempDir  string
	Logger   *infra.Logger
}

// FramePipeline implements the pipeline generator contract.
type FramePipeline struct {
	script   scriptWriter
	narrator Narrator
	frames   frameRenderer
	composer composer
	tempDir  string
	logger   infra.Logger
}

func NewFramePipeline(opts Options) *FramePipeline {
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	p := &FramePipeline{
		script:   opts.Script,
		narrator: opts.Narrator,
		frames:   opts.Frames,
		composer: opts.Composer,
		tempDir:  opts.TempDir,
		logger:   infra.Component(logger, "frames"),
	}
	if p.narrator == nil {
		p.narrator = SilentNarrator{}
	}
	if p.frames == nil {
		p.frames = FrameRenderer{}
	}
	if p.composer == nil {
		p.composer = Composer{}
	}
	return p
}

func (p *FramePipeline) Name() string { return "frames" }

func (p *FramePipeline) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if p.script == nil {
		return "", fmt.Errorf("%w: script writer not configured", domain.ErrConfiguration)
	}
	script, err := p.script.Write(ctx, req.Prompt)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(p.tempDir, tempDirPrefix)
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	out, err := p.build(ctx, req.Prompt, script, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return out, nil
}

func (p *FramePipeline) build(ctx context.Context, prompt, script, dir string) (string, error) {
	audio, err := p.narrator.Synthesize(ctx, script, filepath.Join(dir, "narration"))
	if err != nil {
		return "", err
	}
	frames, err := p.frames.Render(ctx, prompt, dir)
	if err != nil {
		return "", fmt.Errorf("render frames: %w", err)
	}
	p.logger.Debug().Int("frames", len(frames)).Str("audio", audio).Msg("frames: composing video")

	out := filepath.Join(dir, outputFileName)
	if err := p.composer.Compose(ctx, frames, audio, out); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	return out, nil
}

// Cleanup removes the frames_ directory holding path with every frame and
// audio artifact in it.
func (p *FramePipeline) Cleanup(path string) error {
	dir := filepath.Dir(path)
	if !strings.HasPrefix(filepath.Base(dir), tempDirPrefix) {
		return nil
	}
	return os.RemoveAll(dir)
}

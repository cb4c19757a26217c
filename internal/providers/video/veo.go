package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videogen/internal/domain"
	"videogen/internal/infra"
	"videogen/internal/providers/genai"
)

const (
	DefaultModel        = "veo-3.1-generate-preview"
	DefaultPollInterval = 10 * time.Second
	DefaultMaxWait      = 15 * time.Minute

	tempDirPrefix  = "veo_"
	outputFileName = "veo_output.mp4"
)

// API is the slice of the Gemini client the Veo generator depends on.
type API interface {
	HasCredentials() bool
	UploadFile(ctx context.Context, path, displayName string) (*genai.File, error)
	PredictLongRunning(ctx context.Context, model string, instance any, parameters any) (*genai.Operation, error)
	GetOperation(ctx context.Context, name string) (*genai.Operation, error)
	DownloadTo(ctx context.Context, uri string, w io.Writer) (int64, error)
	Download(ctx context.Context, uri string) ([]byte, error)
}

// Options configures a Veo generator.
type Options struct {
	Model        string
	PollInterval time.Duration
	MaxWait      time.Duration
	// TempDir is the parent for per-call output directories; empty means os.TempDir.
	TempDir string
	// ImageRoot is the only directory reference images are read from. Empty
	// disables reference images.
	ImageRoot string
	Logger    *infra.Logger
}

// Veo drives one Veo long-running generation per call and materializes the
// first generated video as a local file.
type Veo struct {
	api          API
	model        string
	pollInterval time.Duration
	maxWait      time.Duration
	tempDir      string
	imageRoot    string
	logger       infra.Logger
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	FileURI  string `json:"fileUri"`
	MimeType string `json:"mimeType,omitempty"`
}

// veoParameters carries only the options the caller supplied.
type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	Resolution      string `json:"resolution,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

type videoRef struct {
	URI         string `json:"uri,omitempty"`
	BytesBase64 string `json:"bytesBase64Encoded,omitempty"`
	VideoBytes  string `json:"videoBytes,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

func (v videoRef) inline() string {
	if v.BytesBase64 != "" {
		return v.BytesBase64
	}
	return v.VideoBytes
}

func (v videoRef) empty() bool {
	return v.URI == "" && v.inline() == ""
}

type generatedVideo struct {
	Video *videoRef `json:"video,omitempty"`
}

// videosResponse accepts both the Gemini API shape and the Vertex-style
// generatedVideos list.
type videosResponse struct {
	GenerateVideoResponse *struct {
		GeneratedSamples []generatedVideo `json:"generatedSamples"`
	} `json:"generateVideoResponse,omitempty"`
	GeneratedVideos []generatedVideo `json:"generatedVideos,omitempty"`
}

func (r videosResponse) first() (videoRef, bool) {
	var all []generatedVideo
	if r.GenerateVideoResponse != nil {
		all = append(all, r.GenerateVideoResponse.GeneratedSamples...)
	}
	all = append(all, r.GeneratedVideos...)
	for _, g := range all {
		if g.Video != nil && !g.Video.empty() {
			return *g.Video, true
		}
	}
	return videoRef{}, false
}

func NewVeo(api API, opts Options) *Veo {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	imageRoot := strings.TrimSpace(opts.ImageRoot)
	if imageRoot != "" {
		if abs, err := filepath.Abs(imageRoot); err == nil {
			imageRoot = abs
		}
	}
	return &Veo{
		api:          api,
		model:        model,
		pollInterval: interval,
		maxWait:      maxWait,
		tempDir:      opts.TempDir,
		imageRoot:    imageRoot,
		logger:       logger,
	}
}

// Name identifies the generator in status step names.
func (v *Veo) Name() string { return "veo" }

// Generate submits the request, waits for the operation and returns the path
// of the downloaded video.
func (v *Veo) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if v.api == nil || !v.api.HasCredentials() {
		return "", fmt.Errorf("%w: GOOGLE_API_KEY missing in environment", domain.ErrConfiguration)
	}

	instance := veoInstance{Prompt: req.Prompt}
	if len(req.ImagePaths) > 0 {
		path, err := v.resolveImage(req.ImagePaths[0])
		if err != nil {
			return "", err
		}
		file, err := v.api.UploadFile(ctx, path, filepath.Base(path))
		if err != nil {
			return "", fmt.Errorf("%w: upload reference image: %v", domain.ErrProviderFailure, err)
		}
		instance.Image = &veoImage{FileURI: file.URI, MimeType: file.MimeType}
	}

	v.logger.Info().Str("model", v.model).Msg("veo: calling predictLongRunning")
	var params any
	if p := buildParameters(req); p != nil {
		params = p
	}
	op, err := v.api.PredictLongRunning(ctx, v.model, instance, params)
	if err != nil {
		return "", fmt.Errorf("%w: start generation: %v", domain.ErrProviderFailure, err)
	}

	op, err = v.wait(ctx, op)
	if err != nil {
		return "", err
	}

	if op.Error != nil {
		return "", fmt.Errorf("%w: veo error: %s", domain.ErrProviderFailure, op.Error.String())
	}
	var resp videosResponse
	if len(op.Response) > 0 {
		if err := json.Unmarshal(op.Response, &resp); err != nil {
			return "", fmt.Errorf("%w: decode operation response: %v", domain.ErrProviderFailure, err)
		}
	}
	video, ok := resp.first()
	if !ok {
		return "", fmt.Errorf("%w: veo operation finished but returned no videos: %s", domain.ErrEmptyResult, rawResponse(op.Response))
	}

	v.logger.Info().Str("operation", op.Name).Msg("veo: generation finished, downloading file")
	path, err := v.download(ctx, video)
	if err != nil {
		return "", err
	}
	v.logger.Info().Str("path", path).Msg("veo: video saved")
	return path, nil
}

// resolveImage maps a reference image path into the image root. Relative
// paths are joined to the root; absolute paths must already be inside it.
func (v *Veo) resolveImage(p string) (string, error) {
	if v.imageRoot == "" {
		return "", fmt.Errorf("%w: reference images are disabled (VEO_IMAGE_ROOT is not set)", domain.ErrInvalidRequest)
	}
	clean := filepath.Clean(strings.TrimSpace(p))
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(v.imageRoot, clean)
	}
	rel, err := filepath.Rel(v.imageRoot, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: reference image %q is outside the image root", domain.ErrInvalidRequest, p)
	}
	return clean, nil
}

// Cleanup removes the per-call directory that holds path. Paths that were
// not produced by Generate are left alone.
func (v *Veo) Cleanup(path string) error {
	dir := filepath.Dir(path)
	if !strings.HasPrefix(filepath.Base(dir), tempDirPrefix) {
		return nil
	}
	return os.RemoveAll(dir)
}

func buildParameters(req domain.GenerationRequest) *veoParameters {
	params := veoParameters{
		AspectRatio:     req.AspectRatio,
		Resolution:      req.Resolution,
		DurationSeconds: req.DurationSeconds,
	}
	if params == (veoParameters{}) {
		return nil
	}
	return &params
}

// wait polls op on a fixed interval until it is done, the deadline passes or
// ctx ends.
func (v *Veo) wait(ctx context.Context, op *genai.Operation) (*genai.Operation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, v.maxWait)
	defer cancel()

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		v.logger.Debug().Str("operation", op.Name).Msg("veo: waiting for video generation to complete")
		select {
		case <-pollCtx.Done():
			return nil, v.pollError(ctx, op.Name)
		case <-ticker.C:
		}
		next, err := v.api.GetOperation(pollCtx, op.Name)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, v.pollError(ctx, op.Name)
			}
			return nil, fmt.Errorf("%w: poll operation %s: %v", domain.ErrProviderFailure, op.Name, err)
		}
		if next.Name == "" {
			next.Name = op.Name
		}
		op = next
	}
	return op, nil
}

func (v *Veo) pollError(parent context.Context, name string) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("poll operation %s: %w", name, err)
	}
	return fmt.Errorf("%w: operation %s still running after %s", domain.ErrTimeout, name, v.maxWait)
}

func (v *Veo) download(ctx context.Context, video videoRef) (string, error) {
	dir, err := os.MkdirTemp(v.tempDir, tempDirPrefix)
	if err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", domain.ErrDownload, err)
	}
	out := filepath.Join(dir, outputFileName)

	if err := v.save(ctx, video, out); err != nil {
		v.logger.Warn().Err(err).Msg("veo: streamed download failed, trying raw download")
		data, rawErr := v.rawBytes(ctx, video)
		if rawErr == nil {
			rawErr = os.WriteFile(out, data, 0o644)
		}
		if rawErr != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("%w: %v; raw fallback: %v", domain.ErrDownload, err, rawErr)
		}
	}
	return out, nil
}

// save streams the referenced video straight to disk.
func (v *Veo) save(ctx context.Context, video videoRef, out string) error {
	if video.URI == "" {
		return errors.New("video has no download uri")
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if _, err := v.api.DownloadTo(ctx, video.URI, f); err != nil {
		f.Close()
		_ = os.Remove(out)
		return err
	}
	return f.Close()
}

func (v *Veo) rawBytes(ctx context.Context, video videoRef) ([]byte, error) {
	if inline := video.inline(); inline != "" {
		data, err := base64.StdEncoding.DecodeString(inline)
		if err != nil {
			return nil, fmt.Errorf("decode inline video: %w", err)
		}
		return data, nil
	}
	if video.URI == "" {
		return nil, errors.New("video has neither uri nor inline bytes")
	}
	data, err := v.api.Download(ctx, video.URI)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("download returned no bytes")
	}
	return data, nil
}

func rawResponse(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

var _ API = (*genai.Client)(nil)

package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"videogen/internal/infra"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	// DownloadClient fetches generated media. It defaults to HTTPClient
	// without its overall timeout, so large files are bounded by ctx only.
	DownloadClient *http.Client
	Logger         *infra.Logger
}

// Client is a thin REST facade over the Gemini API covering the calls the
// video pipeline needs: long-running predictions, operation polling, the
// Files API and plain text generation.
type Client struct {
	apiKey     string
	baseURL    string
	uploadURL  string
	model      string
	httpClient *http.Client
	downloads  *http.Client
	logger     *infra.Logger
}

// Operation mirrors google.longrunning.Operation as returned by the Gemini API.
type Operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done"`
	Error    *OperationError `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// OperationError is the status payload of a failed operation.
type OperationError struct {
	Code    int             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (e *OperationError) String() string {
	if e == nil {
		return ""
	}
	if e.Code != 0 {
		return fmt.Sprintf("code %d: %s", e.Code, e.Message)
	}
	return e.Message
}

// File is a Files API resource.
type File struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	URI         string `json:"uri,omitempty"`
	State       string `json:"state,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type predictLongRunningRequest struct {
	Instances  []any `json:"instances"`
	Parameters any   `json:"parameters,omitempty"`
}

type fileEnvelope struct {
	File File `json:"file"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	downloads := opts.DownloadClient
	if downloads == nil {
		dl := *client
		dl.Timeout = 0
		downloads = &dl
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	uploadURL, err := deriveUploadURL(baseURL)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		uploadURL:  uploadURL,
		model:      model,
		httpClient: client,
		downloads:  downloads,
		logger:     logger,
	}, nil
}

// Model returns the configured default text model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// PredictLongRunning starts a long-running prediction such as a Veo video job
// and returns the initial operation handle.
func (c *Client) PredictLongRunning(ctx context.Context, model string, instance any, parameters any) (*Operation, error) {
	payload := predictLongRunningRequest{Instances: []any{instance}, Parameters: parameters}
	var op Operation
	if err := c.invokeGemini(ctx, http.MethodPost, fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model)), payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("predictLongRunning returned no operation name")
	}
	c.logger.Debug().Str("model", model).Str("operation", op.Name).Msg("genai: operation started")
	return &op, nil
}

// GetOperation fetches the latest state of a long-running operation.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if name == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	var op Operation
	if err := c.invokeGemini(ctx, http.MethodGet, "/"+name, nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// GenerateText runs a single-turn generateContent call and returns the text
// parts of the first candidate.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, http.MethodPost, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model)), payload, &response); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// UploadFile pushes a local file through the resumable Files API protocol.
func (c *Client) UploadFile(ctx context.Context, path, displayName string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload file: %w", err)
	}
	if displayName == "" {
		displayName = filepath.Base(path)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	meta, err := json.Marshal(fileEnvelope{File: File{DisplayName: displayName}})
	if err != nil {
		return nil, fmt.Errorf("marshal file metadata: %w", err)
	}
	start, err := http.NewRequestWithContext(ctx, http.MethodPost, c.withKey(c.uploadURL), bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	start.Header.Set("Content-Type", "application/json")
	start.Header.Set("X-Goog-Upload-Protocol", "resumable")
	start.Header.Set("X-Goog-Upload-Command", "start")
	start.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	start.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(start)
	if err != nil {
		return nil, fmt.Errorf("start upload: %w", err)
	}
	sessionURL := resp.Header.Get("X-Goog-Upload-URL")
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	resp.Body.Close()
	if sessionURL == "" {
		return nil, fmt.Errorf("start upload: missing upload url")
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	put.ContentLength = int64(len(data))
	put.Header.Set("X-Goog-Upload-Offset", "0")
	put.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err = c.httpClient.Do(put)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var envelope fileEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if envelope.File.MimeType == "" {
		envelope.File.MimeType = mimeType
	}
	c.logger.Debug().Str("file", envelope.File.Name).Str("mime", envelope.File.MimeType).Msg("genai: file uploaded")
	return &envelope.File, nil
}

// DownloadTo streams the resource at uri into w.
func (c *Client) DownloadTo(ctx context.Context, uri string, w io.Writer) (int64, error) {
	resp, err := c.openDownload(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("stream file: %w", err)
	}
	return n, nil
}

// Download reads the whole resource at uri into memory.
func (c *Client) Download(ctx context.Context, uri string) ([]byte, error) {
	resp, err := c.openDownload(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return blob, nil
}

func (c *Client) openDownload(ctx context.Context, uri string) (*http.Response, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.withKey(target), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.downloads.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

func (c *Client) invokeGemini(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.withKey(endpoint), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// checkStatus converts an error response into a descriptive error. The body
// is consumed on failure.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	if len(data) > 0 {
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return fmt.Errorf("gemini status %d", resp.StatusCode)
}

func (c *Client) withKey(raw string) string {
	if c.apiKey == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// deriveUploadURL maps https://host/v1beta to https://host/upload/v1beta/files.
func deriveUploadURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = "/upload/" + strings.Trim(u.Path, "/") + "/files"
	u.Path = strings.ReplaceAll(u.Path, "//", "/")
	return u.String(), nil
}

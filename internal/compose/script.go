package compose

import (
	"context"
	"fmt"
	"strings"

	"videogen/internal/domain"
)

const (
	DefaultScriptModel = "gemini-1.5-flash"
	maxScriptRunes     = 700

	scriptInstruction = "You are a concise script writer for 10-12 second short videos. " +
		"Return a single-paragraph narration (2-4 sentences), no disclaimers."
)

// TextAPI is the part of the Gemini client the script writer uses.
type TextAPI interface {
	HasCredentials() bool
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// ScriptWriter turns a prompt into a short narration.
type ScriptWriter struct {
	api   TextAPI
	model string
}

func NewScriptWriter(api TextAPI, model string) *ScriptWriter {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultScriptModel
	}
	return &ScriptWriter{api: api, model: model}
}

// Write returns the narration for prompt, trimmed to 700 characters. An empty
// model reply falls back to a template.
func (s *ScriptWriter) Write(ctx context.Context, prompt string) (string, error) {
	if s.api == nil || !s.api.HasCredentials() {
		return "", fmt.Errorf("%w: GOOGLE_API_KEY missing in env", domain.ErrConfiguration)
	}
	text, err := s.api.GenerateText(ctx, s.model, scriptInstruction+"\n\nPrompt: "+prompt)
	if err != nil {
		return "", fmt.Errorf("%w: script: %v", domain.ErrProviderFailure, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = fmt.Sprintf("This short video is about: %s. Imagine vivid visuals and a calm narration.", prompt)
	}
	return truncateRunes(text, maxScriptRunes), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package compose

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/api/option"
	"google.golang.org/api/texttospeech/v1"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

// Narrator synthesizes speech for a script into outPath (without extension)
// and returns the written file.
type Narrator interface {
	Synthesize(ctx context.Context, text, outPath string) (string, error)
}

// NewNarrator picks the implementation named by provider.
func NewNarrator(ctx context.Context, provider, language, voice string, opts ...option.ClientOption) (Narrator, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", infra.TTSStub:
		return SilentNarrator{}, nil
	case infra.TTSGCloud:
		return NewCloudNarrator(ctx, language, voice, opts...)
	}
	return nil, fmt.Errorf("%w: unsupported TTS provider %q", domain.ErrConfiguration, provider)
}

const (
	wavSampleRate = 16000
	charsPerSec   = 15
	minNarration  = 2 * time.Second
	maxNarration  = 12 * time.Second
)

// SilentNarrator writes a silent 16 kHz mono WAV roughly as long as the
// script would take to read.
type SilentNarrator struct{}

func (SilentNarrator) Synthesize(ctx context.Context, text, outPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := outPath + ".wav"
	if err := os.WriteFile(path, silentWAV(narrationLength(text)), 0o644); err != nil {
		return "", fmt.Errorf("write narration: %w", err)
	}
	return path, nil
}

func narrationLength(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * time.Second / charsPerSec
	if d < minNarration {
		return minNarration
	}
	if d > maxNarration {
		return maxNarration
	}
	return d
}

// silentWAV encodes d of 16-bit PCM silence with a canonical 44 byte header.
func silentWAV(d time.Duration) []byte {
	samples := int(d.Seconds() * wavSampleRate)
	dataLen := samples * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:], wavSampleRate)
	binary.LittleEndian.PutUint32(buf[28:], wavSampleRate*2)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))
	return buf
}

// CloudNarrator calls Google Cloud Text-to-Speech and writes MP3.
type CloudNarrator struct {
	svc      *texttospeech.Service
	language string
	voice    string
}

// NewCloudNarrator uses Application Default Credentials unless opts say
// otherwise.
func NewCloudNarrator(ctx context.Context, language, voice string, opts ...option.ClientOption) (*CloudNarrator, error) {
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: texttospeech: %v", domain.ErrConfiguration, err)
	}
	if language == "" {
		language = "en-US"
	}
	if voice == "" {
		voice = "en-US-Standard-C"
	}
	return &CloudNarrator{svc: svc, language: language, voice: voice}, nil
}

func (n *CloudNarrator) Synthesize(ctx context.Context, text, outPath string) (string, error) {
	resp, err := n.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input:       &texttospeech.SynthesisInput{Text: text},
		Voice:       &texttospeech.VoiceSelectionParams{LanguageCode: n.language, Name: n.voice},
		AudioConfig: &texttospeech.AudioConfig{AudioEncoding: "MP3"},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: synthesize speech: %v", domain.ErrProviderFailure, err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return "", fmt.Errorf("%w: decode audio: %v", domain.ErrProviderFailure, err)
	}
	path := outPath + ".mp3"
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write narration: %w", err)
	}
	return path, nil
}

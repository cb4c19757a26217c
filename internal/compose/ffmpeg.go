package compose

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const DefaultFPS = 6

const padFilter = "scale=720:1280:force_original_aspect_ratio=decrease," +
	"pad=720:1280:(ow-iw)/2:(oh-ih)/2:color=black"

// Composer muxes frames and narration into an mp4 with ffmpeg.
type Composer struct {
	Binary string
	FPS    int
}

func (c Composer) binary() string {
	if strings.TrimSpace(c.Binary) == "" {
		return "ffmpeg"
	}
	return c.Binary
}

func (c Composer) fps() int {
	if c.FPS <= 0 {
		return DefaultFPS
	}
	return c.FPS
}

// Args returns the ffmpeg argument list for a concat list and audio track.
func (c Composer) Args(listFile, audioPath, outPath string) []string {
	return []string{
		"-y",
		"-r", strconv.Itoa(c.fps()),
		"-f", "concat", "-safe", "0", "-i", listFile,
		"-i", audioPath,
		"-vf", padFilter,
		"-shortest",
		"-pix_fmt", "yuv420p",
		outPath,
	}
}

// Compose writes the concat list next to outPath and runs ffmpeg.
func (c Composer) Compose(ctx context.Context, frames []string, audioPath, outPath string) error {
	if len(frames) == 0 {
		return fmt.Errorf("compose: no frames")
	}
	listFile := strings.TrimSuffix(outPath, ".mp4") + ".txt"
	if err := os.WriteFile(listFile, concatList(frames), 0o644); err != nil {
		return fmt.Errorf("compose: write list: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary(), c.Args(listFile, audioPath, outPath)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("compose: ffmpeg: %w: %s", err, tail(stderr.String(), 512))
	}
	return nil
}

func concatList(frames []string) []byte {
	var b bytes.Buffer
	for _, f := range frames {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(f, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.Bytes()
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

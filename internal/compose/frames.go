package compose

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const (
	FrameWidth        = 720
	FrameHeight       = 1280
	DefaultFrameCount = 10
)

// FrameRenderer draws placeholder portrait frames tinted from the prompt,
// with a bar that advances frame by frame.
type FrameRenderer struct {
	Count int
}

// Render writes frame_000.png... into dir and returns the paths in order.
func (r FrameRenderer) Render(ctx context.Context, prompt, dir string) ([]string, error) {
	count := r.Count
	if count <= 0 {
		count = DefaultFrameCount
	}
	seed := promptSeed(prompt)
	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := imaging.Save(renderFrame(seed, i, count), path); err != nil {
			return nil, fmt.Errorf("save frame %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func promptSeed(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32()
}

func frameColor(seed uint32, i int) color.NRGBA {
	return color.NRGBA{
		R: uint8((15*i + int(seed&0xff)) % 255),
		G: uint8(70 + (seed>>8)%64),
		B: uint8(110 + (seed>>16)%64),
		A: 255,
	}
}

func renderFrame(seed uint32, i, count int) *image.NRGBA {
	img := imaging.New(FrameWidth, FrameHeight, frameColor(seed, i))
	barWidth := FrameWidth * (i + 1) / count
	if barWidth > 0 {
		bar := imaging.New(barWidth, 24, color.NRGBA{R: 255, G: 255, B: 255, A: 200})
		img = imaging.Overlay(img, bar, image.Pt(0, FrameHeight-64), 1.0)
	}
	return img
}

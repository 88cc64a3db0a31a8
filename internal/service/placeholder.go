package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"github.com/zey041022/poem-web-app/internal/domain"
)

// PlaceholderQuality is the JPEG quality of the fallback image.
const PlaceholderQuality = 85

var (
	paper    = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	ground   = color.RGBA{0xE8, 0xE8, 0xE8, 0xFF}
	mountain = color.RGBA{0xCC, 0xCC, 0xCC, 0xFF}
	stroke   = color.RGBA{0xAA, 0xAA, 0xAA, 0xFF}
)

// Placeholder draws a plain ink-wash landscape: a pale ground band, a single
// mountain and five horizontal strokes. The layout is defined on a 1024x768
// canvas and scaled to width x height. Output is byte-for-byte deterministic.
func Placeholder(width, height int) (domain.ImageAsset, error) {
	if width <= 0 || height <= 0 {
		return domain.ImageAsset{}, fmt.Errorf("invalid placeholder size %dx%d", width, height)
	}
	sx := func(x int) int { return x * width / 1024 }
	sy := func(y int) int { return y * height / 768 }

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)

	horizon := sy(500)
	draw.Draw(img, image.Rect(0, horizon, width, height), image.NewUniform(ground), image.Point{}, draw.Src)

	// Mountain: apex at (512, 200), base spanning the full width at the horizon.
	peakX, peakY := sx(512), sy(200)
	if span := horizon - peakY; span > 0 {
		for y := peakY; y < horizon; y++ {
			half := (y - peakY) * (width / 2) / span
			for x := peakX - half; x <= peakX+half; x++ {
				if x >= 0 && x < width {
					img.SetRGBA(x, y, mountain)
				}
			}
		}
	}

	for i := 0; i < 5; i++ {
		y := sy(550 + i*30)
		if y >= height {
			break
		}
		for x := sx(100); x < sx(924); x++ {
			img.SetRGBA(x, y, stroke)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: PlaceholderQuality}); err != nil {
		return domain.ImageAsset{}, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return domain.ImageAsset{
		Bytes:  buf.Bytes(),
		Width:  width,
		Height: height,
		Format: domain.CanonicalFormat,
	}, nil
}

// Package raster converts orthomosaic rasters into browser-displayable
// PNG bytes.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/tiff"

	"github.com/victoryforphil/cursed-next-odm/internal/core/geotiff"
)

// ToPNG re-encodes a TIFF/GeoTIFF raster as PNG. The primary path uses
// the general TIFF decoder; when it rejects the raster (tiled GeoTIFF,
// exotic sample layout) a manual GeoTIFF sample read rebuilds the RGBA
// buffer. Both paths emit the same color model so consumers never need
// to know which one ran.
func ToPNG(data []byte) ([]byte, error) {
	img, primaryErr := tiff.Decode(bytes.NewReader(data))
	if primaryErr == nil {
		return encodePNG(toNRGBA(img))
	}
	log.Debug().Err(primaryErr).Msg("primary TIFF decode failed, trying GeoTIFF fallback")

	rgba, fallbackErr := geotiff.DecodeRGBA(data)
	if fallbackErr != nil {
		return nil, fmt.Errorf("decode raster: tiff: %v; geotiff: %v", primaryErr, fallbackErr)
	}
	return encodePNG(rgba)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

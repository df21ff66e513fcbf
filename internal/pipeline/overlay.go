// Package pipeline implements the Processing Pipeline (spec §4.7): fans a
// single elevation raster into the full derivative family, writes outputs
// under the region tree, and coordinates overlay optimization. Grounded on
// the teacher's internal/taskqueue/{queue,task}.go (sequential task
// execution, progress struct shape), generalized from export-task progress
// to terrain-derivative task progress.
package pipeline

import (
	"image"
	"math"

	"github.com/sunshineplan/imgconv"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/config"
	"terrain-pipeline/internal/worldfile"
)

// overlayBoxPx returns the square-box side (in pixels) an overlay should be
// resampled to, given the source raster's pixel count, per spec §4.7's
// standard/aggressive/extreme thresholds.
func overlayBoxPx(sourcePixels int64, s config.Settings) int {
	switch {
	case sourcePixels >= s.OverlayExtremeAtPx:
		return s.OverlayExtremePx
	case sourcePixels >= s.OverlayAggressiveAtPx:
		return s.OverlayAggressivePx
	default:
		return s.OverlayStandardPx
	}
}

// needsOverlay reports whether a TIFF with the given pixel count exceeds
// the overlay-optimization threshold (spec §4.7).
func needsOverlay(sourcePixels int64, s config.Settings) bool {
	return sourcePixels >= s.OverlayThresholdPixels
}

// nextPowerOfTwoBox returns the smallest power-of-two box no wider than
// maxSide that the width/height pair fits within, per spec §4.7's "smallest
// power-of-two box no wider than" wording.
func nextPowerOfTwoBox(width, height, maxSide int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	box := 1
	for box < longest && box < maxSide {
		box *= 2
	}
	if box > maxSide {
		box = maxSide
	}
	if box >= longest {
		// already within bounds; still clamp to the nearest power-of-two
		// at or below maxSide so every overlay obeys the same box grid.
		box = maxSide
		for box/2 >= longest && box/2 >= 1 {
			box /= 2
		}
	}

	scale := float64(box) / float64(longest)
	newW := int(math.Round(float64(width) * scale))
	newH := int(math.Round(float64(height) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

// writeOverlay resamples img via cubic interpolation (sunshineplan/imgconv,
// CatmullRom filter) to the configured box and writes it as
// "<basename>_overlays.png" alongside a matching world file (spec §4.7).
func writeOverlay(img image.Image, basePath string, sourceWidth, sourceHeight int, gt [6]float64, s config.Settings) error {
	sourcePixels := int64(sourceWidth) * int64(sourceHeight)
	if !needsOverlay(sourcePixels, s) {
		return nil
	}

	box := overlayBoxPx(sourcePixels, s)
	newW, newH := nextPowerOfTwoBox(sourceWidth, sourceHeight, box)

	resized := imgconv.Resize(img, &imgconv.ResizeOption{Width: newW, Height: newH})

	overlayPath := basePath + "_overlays.png"
	if err := imgconv.Save(overlayPath, resized, &imgconv.FormatOption{Format: imgconv.PNG}); err != nil {
		return apperr.Wrap(apperr.KindProcessing, "write overlay png", err)
	}

	scaleX := float64(sourceWidth) / float64(newW)
	scaleY := float64(sourceHeight) / float64(newH)
	scaledGT := gt
	scaledGT[1] *= scaleX
	scaledGT[5] *= scaleY

	return worldfile.FromGeoTransform(scaledGT).Write(worldfile.ForPNG(overlayPath))
}

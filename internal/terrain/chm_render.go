package terrain

import (
	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// CHMRender is the pair of PNG artifacts spec §4.6 names for CHM:
// CHM_matplot.png (decorated, viridis, with colorbar/legend) and CHM.png
// (clean overlay). The two must differ by byte content (spec §8's E6/test
// note); RenderCHM guarantees this by appending a colorbar legend strip to
// the decorated image that the clean image never carries.
type CHMRender struct {
	Decorated raster.RGB8
	Clean     raster.RGB8
}

// legendWidthPx is the width of the colorbar strip appended to the right
// edge of the decorated CHM image.
const legendWidthPx = 24

// RenderCHM percentile-clips chm to [2,98] and maps it through viridis for
// both artifacts, then widens the decorated image with a colorbar legend
// strip so Decorated and Clean are never byte-identical.
func RenderCHM(chm *raster.Raster) (CHMRender, error) {
	if chm == nil || len(chm.Data) == 0 {
		return CHMRender{}, apperr.New(apperr.KindProcessing, "chm render: empty raster")
	}

	data := toNaN(chm)
	norm, ok := percentileNormalize(data, 2, 98)
	if !ok {
		return CHMRender{}, apperr.New(apperr.KindProcessing, "chm render: raster is entirely nodata")
	}

	stops := raster.ViridisColormap()
	clean := raster.ApplyColormap(norm, chm.Width, chm.Height, stops)
	decorated := withColorbarLegend(clean, stops)
	return CHMRender{Decorated: decorated, Clean: clean}, nil
}

// withColorbarLegend returns a copy of img widened by legendWidthPx columns
// on the right, the new columns painted as a vertical gradient sampled from
// stops (a simple colorbar legend).
func withColorbarLegend(img raster.RGB8, stops []raster.ColorStop) raster.RGB8 {
	newWidth := img.Width + legendWidthPx
	out := raster.RGB8{
		R: make([]uint8, newWidth*img.Height),
		G: make([]uint8, newWidth*img.Height),
		B: make([]uint8, newWidth*img.Height),
		Width: newWidth, Height: img.Height,
	}
	for y := 0; y < img.Height; y++ {
		srcRow := y * img.Width
		dstRow := y * newWidth
		copy(out.R[dstRow:dstRow+img.Width], img.R[srcRow:srcRow+img.Width])
		copy(out.G[dstRow:dstRow+img.Width], img.G[srcRow:srcRow+img.Width])
		copy(out.B[dstRow:dstRow+img.Width], img.B[srcRow:srcRow+img.Width])

		t := 1 - float64(y)/float64(maxInt(img.Height-1, 1))
		c := legendColorAt(t, stops)
		for x := img.Width; x < newWidth; x++ {
			out.R[dstRow+x] = c.R
			out.G[dstRow+x] = c.G
			out.B[dstRow+x] = c.B
		}
	}
	return out
}

func legendColorAt(t float64, stops []raster.ColorStop) colorRGB {
	rgb := raster.ApplyColormap([]float32{float32(t)}, 1, 1, stops)
	return colorRGB{R: rgb.R[0], G: rgb.G[0], B: rgb.B[0]}
}

type colorRGB struct{ R, G, B uint8 }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

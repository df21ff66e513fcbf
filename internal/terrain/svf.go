package terrain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// SVFRender is the pair of PNG artifacts §4.6 names for Sky View Factor,
// both cividis, percentile-clipped renderings (see RenderSVF). SVF itself
// is computed externally; this component only visualizes the input raster.
type SVFRender struct {
	Decorated raster.RGB8
	Clean     raster.RGB8
}

// RenderSVF percentile-clips svf to [5,95] and maps it through the cividis
// colormap. Decorated and Clean are the same rendering: no colorbar,
// legend or other annotation is added to Decorated, here or by RunSVF.
func RenderSVF(svf *raster.Raster) (SVFRender, error) {
	if svf == nil || len(svf.Data) == 0 {
		return SVFRender{}, apperr.New(apperr.KindProcessing, "svf: empty raster")
	}

	data := toNaN(svf)
	norm, ok := percentileNormalize(data, 5, 95)
	if !ok {
		return SVFRender{}, apperr.New(apperr.KindProcessing, "svf: raster is entirely nodata")
	}

	decorated := raster.ApplyColormap(norm, svf.Width, svf.Height, raster.CividisColormap())
	clean := raster.ApplyColormap(norm, svf.Width, svf.Height, raster.CividisColormap())
	return SVFRender{Decorated: decorated, Clean: clean}, nil
}

// percentileNormalize clips data to its [loPct,hiPct] percentile range then
// linearly rescales to [0,1], used by both SVF and CHM decorated-PNG
// rendering.
func percentileNormalize(data []float32, loPct, hiPct float64) ([]float32, bool) {
	var valid []float64
	for _, v := range data {
		if !isNaN32(v) {
			valid = append(valid, float64(v))
		}
	}
	if len(valid) == 0 {
		return nil, false
	}
	sort.Float64s(valid)

	lo := stat.Quantile(loPct/100, stat.Empirical, valid, nil)
	hi := stat.Quantile(hiPct/100, stat.Empirical, valid, nil)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	out := make([]float32, len(data))
	for i, v := range data {
		if isNaN32(v) {
			out[i] = float32(math.NaN())
			continue
		}
		f := (float64(v) - lo) / span
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		out[i] = float32(f)
	}
	return out, true
}

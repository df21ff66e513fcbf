package terrain

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/raster"
)

// Smoother is the interchangeable smoothing strategy spec §4.6 names
// ("Smoothing filter is selectable {uniform, Gaussian}") — supplemented per
// SPEC_FULL.md §C as two strategy implementations rather than one hardcoded
// box filter.
type Smoother interface {
	Smooth(data []float32, width, height, window int) []float32
}

// UniformSmoother averages a window x window box centered on each pixel,
// ignoring NaN neighbors.
type UniformSmoother struct{}

func (UniformSmoother) Smooth(data []float32, width, height, window int) []float32 {
	return boxSmooth(data, width, height, window, nil)
}

// GaussianSmoother applies a separable Gaussian kernel with sigma =
// window/6, per spec §4.6.
type GaussianSmoother struct{}

func (GaussianSmoother) Smooth(data []float32, width, height, window int) []float32 {
	sigma := float64(window) / 6
	kernel := gaussianKernel(window, sigma)
	return boxSmooth(data, width, height, window, kernel)
}

func gaussianKernel(window int, sigma float64) []float64 {
	r := window / 2
	k := make([]float64, window)
	var sum float64
	for i := -r; i <= r; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+r] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// boxSmooth runs a separable (or uniform, if weights is nil) window x
// window smoothing pass over data, skipping NaN samples in the average.
func boxSmooth(data []float32, width, height, window int, weights []float64) []float32 {
	r := window / 2
	// horizontal pass
	horiz := make([]float32, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if isNaN32(data[idx]) {
				horiz[idx] = float32(math.NaN())
				continue
			}
			var sum, wsum float64
			for i := -r; i <= r; i++ {
				nx := clampIdx(x+i, width)
				v := data[y*width+nx]
				if isNaN32(v) {
					continue
				}
				w := 1.0
				if weights != nil {
					w = weights[i+r]
				}
				sum += float64(v) * w
				wsum += w
			}
			if wsum == 0 {
				horiz[idx] = float32(math.NaN())
				continue
			}
			horiz[idx] = float32(sum / wsum)
		}
	}

	// vertical pass
	out := make([]float32, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if isNaN32(horiz[idx]) {
				out[idx] = float32(math.NaN())
				continue
			}
			var sum, wsum float64
			for i := -r; i <= r; i++ {
				ny := clampIdx(y+i, height)
				v := horiz[ny*width+x]
				if isNaN32(v) {
					continue
				}
				w := 1.0
				if weights != nil {
					w = weights[i+r]
				}
				sum += float64(v) * w
				wsum += w
			}
			if wsum == 0 {
				out[idx] = float32(math.NaN())
				continue
			}
			out[idx] = float32(sum / wsum)
		}
	}
	return out
}

// AdaptiveWindow derives the LRM smoothing window from pixel resolution
// (spec §4.6): <=0.5m -> 61px, <=1.0m -> 31, <=2.0m -> 21, else 11.
func AdaptiveWindow(pixelSizeM float64) int {
	switch {
	case pixelSizeM <= 0.5:
		return 61
	case pixelSizeM <= 1.0:
		return 31
	case pixelSizeM <= 2.0:
		return 21
	default:
		return 11
	}
}

// LRMOptions configures LRM.
type LRMOptions struct {
	Window     int // 0 selects AdaptiveWindow(elev.PixelSizeM)
	Smoother   Smoother
	Normalize  bool // P2-P98 clip + symmetric [-1,1] scale around zero
}

// LRM computes elevation - smooth(elevation, window) (spec §4.6, GLOSSARY
// "Local Relief Model"). When Normalize is set, non-nodata output lies in
// [-1,1] (spec §8 invariant 8); nodata is preserved as -9999.
func LRM(elev *raster.Raster, opts LRMOptions) (*raster.Raster, error) {
	if elev == nil || len(elev.Data) == 0 {
		return nil, apperr.New(apperr.KindProcessing, "lrm: empty elevation raster")
	}
	window := opts.Window
	if window <= 0 {
		window = AdaptiveWindow(elev.PixelSizeM)
	}
	smoother := opts.Smoother
	if smoother == nil {
		smoother = UniformSmoother{}
	}

	data := toNaN(elev)
	smoothed := smoother.Smooth(data, elev.Width, elev.Height, window)

	out := make([]float32, len(data))
	for i := range out {
		if isNaN32(data[i]) || isNaN32(smoothed[i]) {
			out[i] = float32(math.NaN())
			continue
		}
		out[i] = data[i] - smoothed[i]
	}

	if opts.Normalize {
		normalizeSymmetric(out)
	}

	restoreNodata(out, data)
	return &raster.Raster{Data: out, Width: elev.Width, Height: elev.Height, GeoTransform: elev.GeoTransform, Projection: elev.Projection, NoData: nodataSentinel, PixelSizeM: elev.PixelSizeM}, nil
}

// normalizeSymmetric clips values to their P2-P98 range, then scales
// symmetrically to [-1,1] around zero (spec §4.6's "Optional normalization"),
// operating in place over non-NaN positions.
func normalizeSymmetric(data []float32) {
	var valid []float64
	for _, v := range data {
		if !isNaN32(v) {
			valid = append(valid, float64(v))
		}
	}
	if len(valid) == 0 {
		return
	}
	sort.Float64s(valid)

	p2 := stat.Quantile(0.02, stat.Empirical, valid, nil)
	p98 := stat.Quantile(0.98, stat.Empirical, valid, nil)
	bound := math.Max(math.Abs(p2), math.Abs(p98))
	if bound == 0 {
		return
	}

	for i, v := range data {
		if isNaN32(v) {
			continue
		}
		f := float64(v)
		if f < p2 {
			f = p2
		}
		if f > p98 {
			f = p98
		}
		data[i] = float32(f / bound)
	}
}

// Package orchestrator implements the Acquisition Orchestrator (spec
// §4.3): validates a request, routes it, streams progress, registers the
// resulting file into the Region Store, and triggers the Processing
// Pipeline. Grounded on the teacher's internal/taskqueue/queue.go
// (cancellation channels, mutex-guarded registry, worker goroutine shape)
// and golang.org/x/sync/semaphore for bounding concurrent acquisitions
// (spec §5's "Multiple independent acquisitions may run concurrently").
package orchestrator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/cache"
	"terrain-pipeline/internal/domain"
	"terrain-pipeline/internal/events"
	"terrain-pipeline/internal/geo"
	"terrain-pipeline/internal/region"
	"terrain-pipeline/internal/router"
)

// AcquisitionResult is the Orchestrator's terminal public result (spec
// §4.3's `AcquisitionResult`).
type AcquisitionResult struct {
	Success    bool
	FilePath   string
	RegionSlug string
	Metadata   map[string]any
	Errors     []string
}

// PipelineTrigger is called after a successful elevation acquisition is
// registered into the Region Store, decoupling the Orchestrator from the
// concrete Processing Pipeline implementation (avoids an import cycle and
// matches spec §2's "triggers the Processing Pipeline" hand-off).
type PipelineTrigger func(ctx context.Context, regionSlug, rasterPath string, sink events.Sink)

// ConversionTrigger is called after a successful imagery acquisition is
// registered into the Region Store, mirroring PipelineTrigger's decoupling
// for the Sentinel-2 band-conversion step (spec §3: "downstream Sentinel-2
// conversion must consult [NDVI status] and refuse to emit NDVI artifacts
// when false").
type ConversionTrigger func(ctx context.Context, regionSlug, filePath string, sink events.Sink)

// Orchestrator ties the Router, Cache, and Region Store together.
type Orchestrator struct {
	router   *router.Router
	cache    *cache.Cache
	store    *region.Store
	sem      *semaphore.Weighted
	pipeline PipelineTrigger
	convert  ConversionTrigger

	mu        sync.Mutex
	cancelers *lru.Cache[string, context.CancelFunc] // download_id -> cancel, spec §4.3's process-wide registry
}

// maxTrackedCancelers bounds the in-memory cancellation registry. An
// acquisition whose download_id is evicted before it completes is simply no
// longer cancellable by ID; its goroutine still runs to completion or to its
// context's natural deadline, so eviction only trades "cancel an ancient,
// presumably-abandoned download_id" for a bounded map.
const maxTrackedCancelers = 4096

// New constructs an Orchestrator. maxConcurrent bounds simultaneous
// acquisitions (spec §5).
func New(r *router.Router, c *cache.Cache, store *region.Store, maxConcurrent int64, pipeline PipelineTrigger) *Orchestrator {
	cancelers, _ := lru.New[string, context.CancelFunc](maxTrackedCancelers)
	return &Orchestrator{
		router:    r,
		cache:     c,
		store:     store,
		sem:       semaphore.NewWeighted(maxConcurrent),
		pipeline:  pipeline,
		cancelers: cancelers,
	}
}

// SetConversionTrigger wires the Sentinel-2 conversion step invoked after
// imagery acquisitions. Optional; nil (the default) skips conversion.
func (o *Orchestrator) SetConversionTrigger(fn ConversionTrigger) {
	o.convert = fn
}

// Cancel stops the adapter registered under downloadID, if any, and removes
// it from the registry. A cancel after the download's terminal event is a
// documented no-op (spec §5).
func (o *Orchestrator) Cancel(downloadID string) {
	o.mu.Lock()
	cancel, ok := o.cancelers.Get(downloadID)
	o.cancelers.Remove(downloadID)
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

func (o *Orchestrator) register(downloadID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.cancelers.Add(downloadID, cancel)
	o.mu.Unlock()
}

func (o *Orchestrator) unregister(downloadID string) {
	o.mu.Lock()
	o.cancelers.Remove(downloadID)
	o.mu.Unlock()
}

// roundTo4 matches spec §4.3's "lat⁴||lng⁴" cache-key component: the
// coordinate rounded to 4 decimal places.
func roundTo4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func orchestratorCacheKey(source string, lat, lng, bufferKM float64) string {
	s := fmt.Sprintf("%s||%.4f||%.4f||%.4f", source, roundTo4(lat), roundTo4(lng), bufferKM)
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Acquire is the Orchestrator's public operation (spec §4.3). ndviEnabled
// is stamped into the resulting region's metadata and gates the
// Sentinel-2 NDVI conversion step for imagery acquisitions (spec §3).
func (o *Orchestrator) Acquire(ctx context.Context, lat, lng, bufferKM float64, dataType domain.DataType, resolution domain.Resolution, ndviEnabled bool, override []string, adapters router.Registry, sink events.Sink) AcquisitionResult {
	if err := geo.ValidateCoordinates(lat, lng); err != nil {
		return AcquisitionResult{Success: false, Errors: []string{err.Error()}}
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return AcquisitionResult{Success: false, Errors: []string{"acquisition concurrency limit: " + err.Error()}}
	}
	defer o.sem.Release(1)

	box := geo.FromCenter(lat, lng, bufferKM)
	domBox := domain.BBox{West: box.West, South: box.South, East: box.East, North: box.North}

	detected, names := o.router.Route(domBox, dataType, override)

	downloadID := uuid.NewString()
	dctx, cancel := context.WithCancel(ctx)
	o.register(downloadID, cancel)
	defer o.unregister(downloadID)

	sink.Emit(events.Event{Type: events.TypeRoutingInfo, DownloadID: downloadID, Region: string(detected), Sources: names})

	var errs []string
	for i, name := range names {
		adapter, ok := adapters[name]
		if !ok {
			continue
		}

		key := orchestratorCacheKey(name, lat, lng, bufferKM)
		if blobPath, meta, hit := o.cache.Get(key); hit {
			sink.Emit(events.Event{Type: events.TypeCacheHit, DownloadID: downloadID, Source: name})
			result := AcquisitionResult{
				Success:  true,
				FilePath: blobPath,
				Metadata: withDecoration(meta, detected, name, i, names[:i+1]),
			}
			o.finalize(dctx, &result, lat, lng, domBox, dataType, ndviEnabled, sink)
			return result
		}

		if !adapter.CheckAvailability(dctx, domain.DownloadRequest{BBox: domBox, DataType: dataType, Resolution: resolution}) {
			sink.Emit(events.Event{Type: events.TypeSourceUnavailable, DownloadID: downloadID, Source: name})
			continue
		}

		sink.Emit(events.Event{Type: events.TypeSourceSelected, DownloadID: downloadID, Source: name, Priority: i})

		decoratedSink := decorate(sink, downloadID, name, string(detected))
		req := domain.DownloadRequest{BBox: domBox, DataType: dataType, Resolution: resolution}
		result := adapter.Download(dctx, req, decoratedSink)

		if dctx.Err() != nil {
			sink.Emit(events.Event{Type: "cancelled", DownloadID: downloadID, Source: name})
			return AcquisitionResult{Success: false, Errors: []string{"cancelled"}}
		}

		if !result.Success {
			sink.Emit(events.Event{Type: events.TypeSourceFailed, DownloadID: downloadID, Source: name, Error: result.ErrorMessage})
			errs = append(errs, fmt.Sprintf("%s: %s", name, result.ErrorMessage))
			continue
		}

		if err := o.cache.PutFile(key, name, result.FilePath, result.Metadata); err != nil {
			errs = append(errs, fmt.Sprintf("%s: cache store failed: %v", name, err))
			continue
		}
		blobPath, meta, _ := o.cache.Get(key)

		finalResult := AcquisitionResult{
			Success:  true,
			FilePath: blobPath,
			Metadata: withDecoration(meta, detected, name, i, names[:i+1]),
		}
		o.finalize(dctx, &finalResult, lat, lng, domBox, dataType, ndviEnabled, sink)
		return finalResult
	}

	return AcquisitionResult{Success: false, Errors: errs}
}

func withDecoration(meta map[string]any, detected router.Region, selected string, priority int, tried []string) map[string]any {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["routing_region"] = string(detected)
	meta["selected_source"] = selected
	meta["source_priority"] = priority
	meta["tried_sources"] = append([]string{}, tried...)
	return meta
}

// decorate wraps sink so every emitted event carries {source, region_name,
// download_id} per spec §4.3 step 4.
func decorate(sink events.Sink, downloadID, source, regionName string) events.Sink {
	return decoratedSink{inner: sink, downloadID: downloadID, source: source, region: regionName}
}

type decoratedSink struct {
	inner      events.Sink
	downloadID string
	source     string
	region     string
}

func (d decoratedSink) Emit(e events.Event) {
	if e.DownloadID == "" {
		e.DownloadID = d.downloadID
	}
	if e.Source == "" {
		e.Source = d.source
	}
	if e.Region == "" {
		e.Region = d.region
	}
	d.inner.Emit(e)
}

// finalize copies the cached blob into the region tree, stamps
// metadata.txt, and triggers the Processing Pipeline for elevation
// acquisitions or the Sentinel-2 conversion step for imagery acquisitions
// (spec §4.3 step 4, §2's data-flow hand-off).
func (o *Orchestrator) finalize(ctx context.Context, result *AcquisitionResult, lat, lng float64, box domain.BBox, dataType domain.DataType, ndviEnabled bool, sink events.Sink) {
	slug := region.CoordinateSlug(lat, lng)
	result.RegionSlug = slug

	regionFile := filepath.Join(o.store.RegionDir(slug), filepath.Base(result.FilePath))
	if err := copyFile(result.FilePath, regionFile); err != nil {
		return
	}

	_ = o.store.WriteMetadata(slug, region.Metadata{
		RegionName:  slug,
		Source:      "coordinate",
		FilePath:    filepath.Base(result.FilePath),
		NDVIEnabled: ndviEnabled,
		CenterLat:   &lat,
		CenterLng:   &lng,
		NorthBound:  &box.North,
		SouthBound:  &box.South,
		EastBound:   &box.East,
		WestBound:   &box.West,
	})

	switch {
	case dataType == domain.DataTypeElevation && o.pipeline != nil:
		o.pipeline(ctx, slug, regionFile, sink)
	case dataType == domain.DataTypeImagery && o.convert != nil:
		o.convert(ctx, slug, regionFile, sink)
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.Wrap(apperr.KindCache, "create region dir", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return apperr.Wrap(apperr.KindCache, "open cached file", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return apperr.Wrap(apperr.KindCache, "create region file", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return apperr.Wrap(apperr.KindCache, "copy into region tree", err)
	}
	if err := out.Close(); err != nil {
		return apperr.Wrap(apperr.KindCache, "finalize region file", err)
	}
	return os.Rename(tmp, dst)
}

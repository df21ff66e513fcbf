// Shared atomic, progress-emitting HTTP download helper used by every
// adapter, implementing spec §4.1's download contract: (i) honor the
// cancellation token, (ii) emit progress at start/each >=5%/>=5MB/
// completion (a failure emits no event here; it is returned as an error
// for the caller to report), (iii) write to a temp path and atomically move
// into place, (iv) never partially populate the target file. Grounded on
// _examples/other_examples/ecfd5d93_btraven00-hapiq__pkg-downloaders-geo-
// downloader.go.go's downloadFileWithProgress + atomic os.Create/io.Copy
// pattern.
package sources

import (
	"context"
	"io"
	"net/http"
	"os"

	"terrain-pipeline/internal/apperr"
	"terrain-pipeline/internal/events"
)

// progressWriter wraps an io.Writer, emitting download_progress events at
// >=5% increments (or >=5MB increments when total size is unknown).
type progressWriter struct {
	ctx         context.Context
	w           io.Writer
	sink        events.Sink
	downloadID  string
	source      string
	total       int64 // 0 if unknown
	written     int64
	lastPctSent int
	lastMBSent  float64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	select {
	case <-p.ctx.Done():
		return 0, p.ctx.Err()
	default:
	}

	n, err := p.w.Write(b)
	p.written += int64(n)

	if p.total > 0 {
		pct := int(float64(p.written) / float64(p.total) * 100)
		if pct-p.lastPctSent >= 5 {
			p.lastPctSent = pct
			p.sink.Emit(events.Event{Type: events.TypeDownloadProgress, DownloadID: p.downloadID, Source: p.source, Progress: pct})
		}
	} else {
		mb := float64(p.written) / (1024 * 1024)
		if mb-p.lastMBSent >= 5 {
			p.lastMBSent = mb
			p.sink.Emit(events.Event{Type: events.TypeDownloadProgress, DownloadID: p.downloadID, Source: p.source, DownloadedMB: mb})
		}
	}
	return n, err
}

// downloadToTemp performs an HTTP GET, streams the body into a temp file
// under dir while emitting progress, and returns the temp file's path on
// success. The temp file is removed on any failure or cancellation so the
// caller never observes a partial file.
func downloadToTemp(ctx context.Context, client *http.Client, url, dir, source, downloadID string, sink events.Sink) (path string, size int64, err error) {
	sink.Emit(events.Event{Type: events.TypeDownloadStarted, DownloadID: downloadID, Source: source, Provider: source})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindNetwork, "build request", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, apperr.New(apperr.KindCancelled, "download cancelled")
		}
		return "", 0, apperr.Wrap(apperr.KindNetwork, "http request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, apperr.New(classifyHTTPStatus(resp.StatusCode), "upstream returned non-200")
	}

	tmp, err := os.CreateTemp(dir, "download-*.tmp")
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindCache, "create temp file", err)
	}
	tmpPath := tmp.Name()

	pw := &progressWriter{
		ctx: ctx, w: tmp, sink: sink, downloadID: downloadID, source: source,
		total: resp.ContentLength,
	}

	written, copyErr := io.Copy(pw, resp.Body)
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return "", 0, apperr.New(apperr.KindCancelled, "download cancelled mid-transfer")
		}
		if copyErr != nil {
			return "", 0, apperr.Wrap(apperr.KindNetwork, "stream copy failed", copyErr)
		}
		return "", 0, apperr.Wrap(apperr.KindNetwork, "finalize temp file", closeErr)
	}

	sink.Emit(events.Event{Type: events.TypeDownloadComplete, DownloadID: downloadID, Source: source, FileSizeMB: float64(written) / (1024 * 1024)})
	return tmpPath, written, nil
}

// streamBodyToTemp writes an already-open response body (e.g. the result
// of a non-idempotent POST, which downloadToTemp cannot safely retry) into
// a temp file under dir while emitting progress, atomically, per the same
// contract as downloadToTemp.
func streamBodyToTemp(ctx context.Context, body io.Reader, contentLength int64, dir, source, downloadID string, sink events.Sink) (path string, size int64, err error) {
	tmp, err := os.CreateTemp(dir, "download-*.tmp")
	if err != nil {
		return "", 0, apperr.Wrap(apperr.KindCache, "create temp file", err)
	}
	tmpPath := tmp.Name()

	pw := &progressWriter{ctx: ctx, w: tmp, sink: sink, downloadID: downloadID, source: source, total: contentLength}

	written, copyErr := io.Copy(pw, body)
	closeErr := tmp.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return "", 0, apperr.New(apperr.KindCancelled, "download cancelled mid-transfer")
		}
		if copyErr != nil {
			return "", 0, apperr.Wrap(apperr.KindNetwork, "stream copy failed", copyErr)
		}
		return "", 0, apperr.Wrap(apperr.KindNetwork, "finalize temp file", closeErr)
	}

	sink.Emit(events.Event{Type: events.TypeDownloadComplete, DownloadID: downloadID, Source: source, FileSizeMB: float64(written) / (1024 * 1024)})
	return tmpPath, written, nil
}

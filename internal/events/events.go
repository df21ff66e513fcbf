// Package events defines the progress-event schema (spec §6) and the Sink
// capability that replaces the teacher's closure-based progress callbacks,
// per SPEC_FULL.md/spec.md §9's "async progress callbacks -> progress_sink
// capability" redesign note. Grounded on
// internal/taskqueue/task.go's TaskProgress struct shape.
package events

// Type is one of the recognized progress event type strings from spec §6.
type Type string

const (
	TypeRoutingInfo         Type = "routing_info"
	TypeSourceSelected      Type = "source_selected"
	TypeSourceUnavailable   Type = "source_unavailable"
	TypeSourceFailed        Type = "source_failed"
	TypeDownloadStarted     Type = "download_started"
	TypeDownloadProgress    Type = "download_progress"
	TypeDownloadComplete    Type = "download_complete"
	TypeCacheHit            Type = "cache_hit"
	TypeProcessingProgress  Type = "processing_progress"
	TypeProcessingCompleted Type = "processing_completed"
	TypeProcessingError     Type = "processing_error"
)

// Event is a JSON-serializable progress event. Optional fields (Band,
// Provider, Coordinates, etc.) are tolerated as absent by consumers per
// spec §9's "treat optional keys as optional" note.
type Event struct {
	Type          Type           `json:"type"`
	DownloadID    string         `json:"download_id,omitempty"`
	Source        string         `json:"source,omitempty"`
	Region        string         `json:"region,omitempty"`
	Sources       []string       `json:"sources,omitempty"`
	Priority      int            `json:"priority,omitempty"`
	Error         string         `json:"error,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Progress      int            `json:"progress,omitempty"`
	DownloadedMB  float64        `json:"downloaded_mb,omitempty"`
	FileSizeMB    float64        `json:"file_size_mb,omitempty"`
	Message       string         `json:"message,omitempty"`
	Extra         map[string]any `json:"-"`
}

// Sink is the capability interface progress events are delivered through —
// a channel-backed sink and a no-op sink both satisfy it.
type Sink interface {
	Emit(Event)
}

// ChanSink delivers events over a buffered channel, preserving per-download
// FIFO order (spec §5 "Ordering guarantees").
type ChanSink struct {
	ch chan Event
}

// NewChanSink creates a ChanSink with the given buffer depth.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer)}
}

func (s *ChanSink) Emit(e Event) {
	s.ch <- e
}

// Events returns the receive side of the channel.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Close closes the underlying channel. Callers must stop calling Emit
// before Close.
func (s *ChanSink) Close() { close(s.ch) }

// NopSink discards every event; useful for tests and CLI-quiet mode.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// CollectSink accumulates events in order, useful for tests asserting on
// emission sequence.
type CollectSink struct {
	Events []Event
}

func (s *CollectSink) Emit(e Event) {
	s.Events = append(s.Events, e)
}

package progress

import "time"

// Phase identifies a coarse stage of one download/convert operation.
type Phase string

const (
	PhaseStarting       Phase = "starting"
	PhaseDownloading    Phase = "downloading"
	PhasePostProcessing Phase = "post_processing"
	PhaseFinished       Phase = "finished"
	PhaseErrored        Phase = "errored"
)

// Rank orders the forward chain starting < downloading < post_processing < finished.
// Errored has no position in the chain and returns -1, as do unknown phases.
func (p Phase) Rank() int {
	switch p {
	case PhaseStarting:
		return 0
	case PhaseDownloading:
		return 1
	case PhasePostProcessing:
		return 2
	case PhaseFinished:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether no further events may follow this phase.
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseErrored
}

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	return p == PhaseErrored || p.Rank() >= 0
}

// Event is one status report from the extraction library or the transcoder.
// Nil pointer fields mean the source did not provide the value.
type Event struct {
	Phase Phase

	BytesDone  *int64
	BytesTotal *int64   // may be an estimate
	Speed      *float64 // bytes per second
	ETA        *int64   // seconds

	OutputPath   string // set on finished
	ErrorMessage string // set on errored
	Detail       string // optional short source status, e.g. "Merger"
}

// State is the display-ready view of one operation.
type State struct {
	OperationID      string    `json:"id"`
	Phase            Phase     `json:"phase"`
	FractionComplete float64   `json:"fraction"`
	BytesDone        int64     `json:"bytes_done,omitempty"`
	BytesTotal       int64     `json:"bytes_total,omitempty"`
	DisplaySpeed     string    `json:"speed"`
	DisplayETA       string    `json:"eta"`
	Message          string    `json:"message"`
	OutputPath       string    `json:"output_path,omitempty"`
	Error            string    `json:"error,omitempty"`
	Terminal         bool      `json:"terminal"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Percent returns FractionComplete scaled to 0..100.
func (s State) Percent() float64 {
	return s.FractionComplete * 100
}

// Sink renders relay states. Update must be idempotent and must not block for long.
type Sink interface {
	Update(s State)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(State)

// Update calls f(s).
func (f SinkFunc) Update(s State) { f(s) }

type discard struct{}

func (discard) Update(State) {}

// Discard is a Sink that drops every state.
var Discard Sink = discard{}

// Helpers for building events with optional fields.

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

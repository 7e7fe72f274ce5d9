// Package relay turns a raw progress event stream into display-ready
// state and pushes it to a display sink.
//
// A Relay belongs to exactly one operation. It never returns errors to the
// event source: malformed events fall back to placeholders, and events that
// arrive after a terminal phase or move the phase backwards are logged and
// dropped.
package relay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ytdash/internal/progress"
	"ytdash/internal/util/format"
)

// DefaultErrorMessage is shown when an errored event carries no message.
const DefaultErrorMessage = "download failed"

// Relay is the per-operation bridge between an event source and a sink.
type Relay struct {
	mu    sync.Mutex
	sink  progress.Sink
	log   zerolog.Logger
	now   func() time.Time
	state progress.State
}

// Option configures a Relay.
type Option func(*Relay)

// WithClock overrides the time source used for State.UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

// New returns a relay for one operation. A nil sink discards updates.
func New(operationID string, sink progress.Sink, log zerolog.Logger, opts ...Option) *Relay {
	if sink == nil {
		sink = progress.Discard
	}
	r := &Relay{
		sink: sink,
		log:  log.With().Str("op", operationID).Logger(),
		now:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.state = progress.State{
		OperationID:  operationID,
		Phase:        progress.PhaseStarting,
		DisplaySpeed: format.UnknownSpeed,
		DisplayETA:   format.UnknownETA,
		Message:      "Queued",
		UpdatedAt:    r.now(),
	}
	return r
}

// HandleEvent applies ev to the state and forwards the result to the sink.
// It is safe to call from several goroutines; updates apply in call order.
func (r *Relay) HandleEvent(ev progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Terminal {
		r.log.Warn().
			Str("phase", string(ev.Phase)).
			Str("terminal_phase", string(r.state.Phase)).
			Msg("event after terminal phase ignored")
		return
	}
	if !ev.Phase.Valid() {
		r.log.Warn().Str("phase", string(ev.Phase)).Msg("event with unknown phase ignored")
		return
	}
	if ev.Phase != progress.PhaseErrored && ev.Phase.Rank() < r.state.Phase.Rank() {
		r.log.Warn().
			Str("phase", string(ev.Phase)).
			Str("last_phase", string(r.state.Phase)).
			Msg("out-of-order phase ignored")
		return
	}

	next := r.apply(r.state, ev)
	r.state = next
	r.push(next)
}

// Fail reports err as the terminal errored event. Context cancellation and
// deadline errors get short fixed messages.
func (r *Relay) Fail(err error) {
	msg := DefaultErrorMessage
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		msg = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "timed out"
	default:
		msg = err.Error()
	}
	r.HandleEvent(progress.Event{Phase: progress.PhaseErrored, ErrorMessage: msg})
}

// State returns a copy of the current state.
func (r *Relay) State() progress.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done reports whether a terminal phase has been processed.
func (r *Relay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Terminal
}

func (r *Relay) apply(prev progress.State, ev progress.Event) progress.State {
	next := prev
	next.Phase = ev.Phase
	next.UpdatedAt = r.now()

	if ev.BytesDone != nil && *ev.BytesDone >= 0 {
		next.BytesDone = *ev.BytesDone
	}
	if ev.BytesTotal != nil && *ev.BytesTotal >= 0 {
		next.BytesTotal = *ev.BytesTotal
	}
	if frac, ok := fraction(ev); ok && frac > next.FractionComplete {
		next.FractionComplete = frac
	}

	next.DisplaySpeed, next.DisplayETA = r.display(ev)

	switch ev.Phase {
	case progress.PhaseStarting:
		next.Message = "Starting"
	case progress.PhaseDownloading:
		next.Message = fmt.Sprintf("Downloading %.1f%%", next.Percent())
	case progress.PhasePostProcessing:
		next.Message = "Processing"
		if ev.Detail != "" {
			next.Message = "Processing (" + ev.Detail + ")"
		}
	case progress.PhaseFinished:
		next.FractionComplete = 1.0
		next.OutputPath = ev.OutputPath
		next.Terminal = true
		next.Message = "Completed"
		if ev.OutputPath != "" {
			next.Message = "Saved: " + filepath.Base(ev.OutputPath)
		}
	case progress.PhaseErrored:
		msg := ev.ErrorMessage
		if msg == "" {
			msg = DefaultErrorMessage
		}
		next.Error = msg
		next.Terminal = true
		next.Message = "Failed: " + msg
	}
	return next
}

// fraction derives bytes_done/bytes_total clamped to [0,1]. ok is false when
// the total is absent or zero.
func fraction(ev progress.Event) (float64, bool) {
	if ev.BytesDone == nil || ev.BytesTotal == nil || *ev.BytesTotal <= 0 {
		return 0, false
	}
	f := float64(*ev.BytesDone) / float64(*ev.BytesTotal)
	switch {
	case f < 0:
		f = 0
	case f > 1:
		f = 1
	}
	return f, true
}

// display formats speed and ETA. Terminal phases clear both.
func (r *Relay) display(ev progress.Event) (speed, eta string) {
	speed, eta = format.UnknownSpeed, format.UnknownETA
	if ev.Phase.Terminal() {
		return "", ""
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn().Interface("panic", rec).Msg("progress formatting failed")
			speed, eta = format.UnknownSpeed, format.UnknownETA
		}
	}()
	return format.Speed(ev.Speed), format.ETA(ev.ETA)
}

func (r *Relay) push(s progress.State) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("display sink panicked")
		}
	}()
	r.sink.Update(s)
}

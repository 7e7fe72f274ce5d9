package encoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"ytdash/internal/progress"
)

// ProgressState tracks ffmpeg -progress key=value blocks across lines.
type ProgressState struct {
	OutTimeUs int64
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine folds one line into the state. A "progress=" line closes a
// block and yields a post-processing event; durationSec is the expected
// output length, 0 if unknown.
func (ps *ProgressState) UpdateFromLine(line string, durationSec float64) (progress.Event, bool) {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return progress.Event{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "out_time_us", "out_time_ms":
		// both are microseconds in ffmpeg's output
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.OutTimeUs = v
		}
	case "speed":
		ps.SpeedStr = val
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.TotalSize = v
		}
	case "progress":
		ev := progress.Event{Phase: progress.PhasePostProcessing, Detail: "Trim"}
		if pct, ok := ps.Percent(durationSec); ok {
			if val == "end" {
				pct = 100
			}
			ev.Detail = fmt.Sprintf("Trim %d%%", int(math.Floor(pct)))
			if remaining := ps.eta(durationSec); remaining != nil {
				ev.ETA = remaining
			}
		}
		return ev, true
	}
	return progress.Event{}, false
}

// Percent returns the encoded share of durationSec in 0..100.
func (ps *ProgressState) Percent(durationSec float64) (float64, bool) {
	if durationSec <= 0 {
		return 0, false
	}
	pct := float64(ps.OutTimeUs) / (durationSec * 1_000_000) * 100
	return math.Max(0, math.Min(100, pct)), true
}

// eta derives remaining seconds from ffmpeg's "1.5x" speed multiplier.
func (ps *ProgressState) eta(durationSec float64) *int64 {
	mult, err := strconv.ParseFloat(strings.TrimSuffix(ps.SpeedStr, "x"), 64)
	if err != nil || mult <= 0 {
		return nil
	}
	left := durationSec - float64(ps.OutTimeUs)/1_000_000
	if left < 0 {
		left = 0
	}
	return progress.Int64(int64(math.Ceil(left / mult)))
}

package format

import (
	"fmt"
	"math"
)

const (
	UnknownSpeed = "unknown speed"
	UnknownETA   = "unknown ETA"
	UnknownSize  = "Unknown size"
)

// Speed renders a bytes-per-second rate, e.g. "1.5 MB/s".
// Nil, negative, NaN and infinite rates render as UnknownSpeed.
func Speed(bps *float64) string {
	if bps == nil || *bps < 0 || math.IsNaN(*bps) || math.IsInf(*bps, 0) {
		return UnknownSpeed
	}
	return HumanizeBytes(int64(*bps)) + "/s"
}

// ETA renders remaining seconds as "45s", "2m 15s" or "1h 30m 5s".
func ETA(seconds *int64) string {
	if seconds == nil || *seconds < 0 {
		return UnknownETA
	}
	secs := *seconds
	h := secs / 3600
	m := secs % 3600 / 60
	s := secs % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Size renders a byte count or UnknownSize when it is not positive.
func Size(b int64) string {
	if b <= 0 {
		return UnknownSize
	}
	return HumanizeBytes(b)
}

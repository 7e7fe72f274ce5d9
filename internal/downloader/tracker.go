package downloader

import "ytdash/internal/progress"

// byteTracker folds yt-dlp's per-file byte counts into operation totals.
// yt-dlp restarts its counters for every file it fetches (video stream,
// audio stream, subtitles), so raw counts go backwards between files.
// Sidecar downloads are not counted.
type byteTracker struct {
	files   map[string]*fileBytes
	order   []string
	current string
}

type fileBytes struct {
	done  int64
	total *int64
}

func newByteTracker() *byteTracker {
	return &byteTracker{files: make(map[string]*fileBytes)}
}

// normalize rewrites lr's event to carry operation-wide byte counts. ok is
// false when the event should not reach the relay.
func (t *byteTracker) normalize(lr LineResult) (progress.Event, bool) {
	if lr.Path != "" && !lr.Final && lr.Event == nil {
		t.current = lr.Path
	}
	if lr.Event == nil {
		return progress.Event{}, false
	}
	ev := *lr.Event
	if ev.Phase != progress.PhaseDownloading {
		return ev, true
	}

	key := lr.Path
	if key == "" {
		key = t.current
	} else {
		t.current = key
	}
	if key != "" && IsSidecar(key) {
		return progress.Event{}, false
	}

	fb, seen := t.files[key]
	if !seen {
		fb = &fileBytes{}
		t.files[key] = fb
		t.order = append(t.order, key)
	}
	if ev.BytesDone != nil && *ev.BytesDone > fb.done {
		fb.done = *ev.BytesDone
	}
	if ev.BytesTotal != nil && *ev.BytesTotal > 0 {
		fb.total = progress.Int64(*ev.BytesTotal)
	}

	var done, total int64
	known := true
	for _, k := range t.order {
		f := t.files[k]
		done += f.done
		if f.total == nil {
			known = false
			continue
		}
		total += *f.total
	}
	ev.BytesDone = progress.Int64(done)
	ev.BytesTotal = nil
	if known && total > 0 {
		ev.BytesTotal = progress.Int64(total)
	}
	return ev, true
}

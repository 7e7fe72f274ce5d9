package progress

import "sync"

// Latest keeps only the most recent state it was given.
// Readers on other goroutines call Load; the relay calls Update.
type Latest struct {
	mu    sync.RWMutex
	state State
	seen  bool
}

// NewLatest returns a Latest seeded with an initial state.
func NewLatest(initial State) *Latest {
	return &Latest{state: initial, seen: true}
}

// Update replaces the stored state.
func (l *Latest) Update(s State) {
	l.mu.Lock()
	l.state = s
	l.seen = true
	l.mu.Unlock()
}

// Load returns the stored state and whether any state was stored.
func (l *Latest) Load() (State, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.seen
}

// Fanout forwards every state to each sink in order.
type Fanout []Sink

// Update implements Sink.
func (f Fanout) Update(s State) {
	for _, sink := range f {
		if sink != nil {
			sink.Update(s)
		}
	}
}

// Package session tracks download operations started over the HTTP API.
// Each operation publishes its relay states to a progress.Latest that
// pollers read; a weighted semaphore caps how many run at once.
package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"ytdash/internal/model"
	"ytdash/internal/pipeline"
	"ytdash/internal/progress"
	"ytdash/internal/relay"
)

var (
	ErrNotFound = errors.New("operation not found")
	ErrRunning  = errors.New("operation still running")
	ErrNoOutput = errors.New("operation has no output")
	ErrClosed   = errors.New("session manager closed")
)

// Runner executes one operation; *pipeline.Service satisfies it.
type Runner interface {
	RunWithID(ctx context.Context, id, url string, opts model.DownloadOptions, sink progress.Sink) (pipeline.Result, error)
}

// Snapshot is the externally visible view of an operation.
type Snapshot struct {
	ID        string             `json:"id"`
	URL       string             `json:"url"`
	Title     string             `json:"title,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	State     progress.State     `json:"state"`
	Outputs   []model.OutputFile `json:"outputs,omitempty"`
}

type operation struct {
	id      string
	url     string
	created time.Time
	latest  *progress.Latest
	cancel  context.CancelFunc
	done    chan struct{}

	// set once done is closed
	result pipeline.Result
	err    error
}

func (op *operation) finished() bool {
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

func (op *operation) snapshot() Snapshot {
	st, _ := op.latest.Load()
	s := Snapshot{ID: op.id, URL: op.url, CreatedAt: op.created, State: st}
	if op.finished() {
		s.Title = op.result.Info.Title
		s.Outputs = op.result.Outputs
	}
	return s
}

// Manager owns all operations of one server process.
type Manager struct {
	runner Runner
	sem    *semaphore.Weighted
	log    zerolog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	ops    map[string]*operation
	order  []string
	closed bool
}

// NewManager returns a Manager running at most jobs operations at once.
func NewManager(runner Runner, jobs int, log zerolog.Logger) *Manager {
	if jobs < 1 {
		jobs = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		runner: runner,
		sem:    semaphore.NewWeighted(int64(jobs)),
		log:    log,
		ctx:    ctx,
		stop:   stop,
		ops:    make(map[string]*operation),
	}
}

// Start queues an operation and returns its id immediately. The operation
// outlives ctx; use Cancel to stop it.
func (m *Manager) Start(ctx context.Context, url string, opts model.DownloadOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	log := m.log.With().Str("op", id).Logger()
	opCtx, cancel := context.WithCancel(m.ctx)
	op := &operation{
		id:      id,
		url:     url,
		created: time.Now(),
		latest:  progress.NewLatest(relay.New(id, nil, log).State()),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.ops[id] = op
	m.order = append(m.order, id)

	m.wg.Add(1)
	go m.run(opCtx, op, opts, log)

	log.Info().Str("url", url).Msg("operation queued")
	return id, nil
}

func (m *Manager) run(ctx context.Context, op *operation, opts model.DownloadOptions, log zerolog.Logger) {
	defer m.wg.Done()
	defer close(op.done)
	defer op.cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		// cancelled while queued; publish the terminal state ourselves
		relay.New(op.id, op.latest, log).Fail(err)
		op.err = err
		return
	}
	defer m.sem.Release(1)

	op.result, op.err = m.runner.RunWithID(ctx, op.id, op.url, opts, op.latest)
}

func (m *Manager) get(id string) (*operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return op, nil
}

// Get returns the current snapshot of one operation.
func (m *Manager) Get(id string) (Snapshot, error) {
	op, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return op.snapshot(), nil
}

// List returns snapshots of all operations in start order.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	ops := make([]*operation, 0, len(m.order))
	for _, id := range m.order {
		ops = append(ops, m.ops[id])
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.snapshot())
	}
	return out
}

// Wait blocks until the operation is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Snapshot, error) {
	op, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-op.done:
		return op.snapshot(), nil
	case <-ctx.Done():
		return op.snapshot(), ctx.Err()
	}
}

// Cancel stops a running operation. It reports false when the operation
// had already finished.
func (m *Manager) Cancel(id string) (bool, error) {
	op, err := m.get(id)
	if err != nil {
		return false, err
	}
	if op.finished() {
		return false, nil
	}
	op.cancel()
	m.log.Info().Str("op", id).Msg("operation cancel requested")
	return true, nil
}

// Outputs returns the files of a finished operation.
func (m *Manager) Outputs(id string) ([]model.OutputFile, error) {
	op, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if !op.finished() {
		return nil, ErrRunning
	}
	if op.err != nil || len(op.result.Outputs) == 0 {
		return nil, ErrNoOutput
	}
	return op.result.Outputs, nil
}

// Remove forgets a finished operation and deletes its workdir.
func (m *Manager) Remove(id string) error {
	op, err := m.get(id)
	if err != nil {
		return err
	}
	if !op.finished() {
		return ErrRunning
	}

	m.mu.Lock()
	delete(m.ops, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return cleanup(op)
}

// Close cancels every operation, waits for them, and deletes all workdirs.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.stop()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, op := range m.ops {
		if err := cleanup(op); err != nil {
			errs = append(errs, err)
		}
	}
	m.ops = map[string]*operation{}
	m.order = nil
	return errors.Join(errs...)
}

func cleanup(op *operation) error {
	if op.result.Workdir == "" {
		return nil
	}
	return os.RemoveAll(op.result.Workdir)
}

package runs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"jobsweep-engine/internal/accounts"
	"jobsweep-engine/internal/aggregate"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/export"
	"jobsweep-engine/internal/logging"
	"jobsweep-engine/internal/scheduler"
)

var (
	ErrRunActive = errors.New("a run is already in progress")
	ErrNotFound  = errors.New("run not found")
)

// exportTimeout bounds delivery after a run ends, including runs ended by
// cancellation.
const exportTimeout = 2 * time.Minute

type Run struct {
	ID        string
	StartedAt time.Time

	params scheduler.Params
	b      *built
	logs   *logging.Capture
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	summary   *aggregate.Summary
	err       error
	exportErr error
}

// Status is the JSON view of a run.
type Status struct {
	ID          string             `json:"run_id"`
	Params      scheduler.Params   `json:"params"`
	StartedAt   time.Time          `json:"started_at"`
	Completed   bool               `json:"completed"`
	Progress    aggregate.Snapshot `json:"progress"`
	Summary     *aggregate.Summary `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
	ExportError string             `json:"export_error,omitempty"`
}

func (r *Run) Status() Status {
	st := Status{ID: r.ID, Params: r.params, StartedAt: r.StartedAt}
	if snap, ok := r.b.coord.Progress(); ok {
		st.Progress = snap
	} else {
		st.Progress = aggregate.Snapshot{Target: r.params.Target, Outcome: aggregate.Running}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		st.Completed = true
	default:
	}
	st.Summary = r.summary
	if r.err != nil {
		st.Error = r.err.Error()
	}
	if r.exportErr != nil {
		st.ExportError = r.exportErr.Error()
	}
	return st
}

// Stop asks the run to finish after in-flight tasks.
func (r *Run) Stop() { r.b.coord.Stop() }

// Cancel aborts in-flight requests as well.
func (r *Run) Cancel() { r.cancel() }

func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run and its export are finished, or ctx ends.
func (r *Run) Wait(ctx context.Context) (aggregate.Summary, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return aggregate.Summary{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return aggregate.Summary{}, r.err
	}
	return *r.summary, r.exportErr
}

// Records returns collected postings from index from on.
func (r *Run) Records(from int) []domain.JobRecord { return r.b.coord.Records(from) }

func (r *Run) Accounts() []accounts.State { return r.b.store.States() }

// Logs returns the log lines captured since the previous call.
func (r *Run) Logs() []string { return r.logs.Drain() }

func (r *Run) running() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Manager runs at most one collection at a time. Finished runs stay
// queryable.
type Manager struct {
	engine *Engine
	sink   export.Sink
	batch  int

	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	active *Run
	wg     sync.WaitGroup
}

// NewManager builds a manager. sink may be nil, in which case records are
// kept only in memory.
func NewManager(e *Engine, sink export.Sink) *Manager {
	return &Manager{engine: e, sink: sink, batch: 200, runs: make(map[string]*Run)}
}

func (m *Manager) Engine() *Engine { return m.engine }

// Start launches a run in the background. The run keeps ctx's values but
// not its cancellation; use Stop, Cancel or Close to end it.
func (m *Manager) Start(ctx context.Context, req Request) (*Run, error) {
	p, err := m.engine.Params(req)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if m.engine.PoolSize() == 0 {
		return nil, scheduler.ErrNoEligible
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.running() {
		return nil, ErrRunActive
	}

	p.RunID = uuid.NewString()
	capture := logging.NewCapture(0)
	log := logging.NewLogger(capture).WithFields(logrus.Fields{"component": "scheduler"})
	b := m.engine.build(p.RunID, log)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Run{
		ID:        p.RunID,
		StartedAt: time.Now().UTC(),
		params:    p,
		b:         b,
		logs:      capture,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.runs[r.ID] = r
	m.order = append(m.order, r.ID)
	m.active = r

	m.wg.Add(1)
	go m.execute(runCtx, r, log)
	return r, nil
}

func (m *Manager) execute(ctx context.Context, r *Run, log *logrus.Entry) {
	defer m.wg.Done()
	defer close(r.done)
	defer r.cancel()
	defer func() {
		if err := r.b.close(); err != nil {
			log.Warnf("[runs] close dedup index: %v", err)
		}
	}()

	sum, err := r.b.coord.Run(ctx, r.params)
	var exportErr error
	if err == nil && m.sink != nil {
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
		exportErr = export.Deliver(ectx, m.sink, r.b.coord.Records(0), sum, m.batch)
		cancel()
		if exportErr != nil {
			log.Errorf("[runs] export run=%s: %v", r.ID, exportErr)
		}
	}
	if err != nil {
		log.Errorf("[runs] run=%s failed: %v", r.ID, err)
	}

	r.mu.Lock()
	if err == nil {
		r.summary = &sum
	}
	r.err = err
	r.exportErr = exportErr
	r.mu.Unlock()
}

func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok
}

// List returns every run in start order.
func (m *Manager) List() []Status {
	m.mu.Lock()
	rs := make([]*Run, 0, len(m.order))
	for _, id := range m.order {
		rs = append(rs, m.runs[id])
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Status())
	}
	return out
}

// Active returns the run in progress, if any.
func (m *Manager) Active() (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || !m.active.running() {
		return nil, false
	}
	return m.active, true
}

// Close stops the active run and waits for it to finish exporting. If ctx
// ends first the run is cancelled outright and Close still waits.
func (m *Manager) Close(ctx context.Context) {
	if r, ok := m.Active(); ok {
		r.Stop()
		select {
		case <-r.Done():
		case <-ctx.Done():
			r.Cancel()
		}
	}
	m.wg.Wait()
}

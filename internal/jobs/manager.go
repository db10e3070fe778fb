// Package jobs runs searches as cancellable background jobs and publishes
// their progress as immutable snapshots.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/lead-collector/internal/enrichment"
	"github.com/jonathan/lead-collector/internal/logger"
	"github.com/jonathan/lead-collector/internal/types"
)

// Phase messages published while a job runs.
const (
	PhaseStarting    = "Starting search..."
	PhaseLookup      = "Phase 1: searching Google Places"
	PhaseEnrichment  = "Phase 2: collecting contacts"
	PhaseCompleted   = "Search completed"
	PhaseNoResults   = "No results found"
	PhaseInterrupted = "Search interrupted"
)

// maxRetainedJobs bounds how many finished jobs can still be polled by id.
const maxRetainedJobs = 16

// Searcher finds the businesses for a niche and city.
type Searcher interface {
	Validate(niche, city string) error
	Search(ctx context.Context, niche, city string) ([]types.BusinessRecord, error)
}

// Enricher adds website contacts to business records.
type Enricher interface {
	EnrichAll(ctx context.Context, records []types.BusinessRecord, onProgress enrichment.ProgressCallback) []types.BusinessRecord
}

// Manager owns the current search job. At most one job runs at a time:
// starting a new job cancels the previous one and waits for it to exit.
type Manager struct {
	searcher Searcher
	enricher Enricher
	history  *History
	log      *zap.SugaredLogger
	now      func() time.Time

	baseCtx context.Context
	stopAll context.CancelFunc

	startMu sync.Mutex

	mu    sync.RWMutex
	jobs  map[string]*job
	order []string

	current atomic.Pointer[job]
}

type job struct {
	id       string
	niche    string
	city     string
	started  time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	progress atomic.Pointer[types.JobProgress]
}

// NewManager creates a Manager. A nil history gets a fresh one.
func NewManager(searcher Searcher, enricher Enricher, history *History) *Manager {
	if history == nil {
		history = NewHistory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		searcher: searcher,
		enricher: enricher,
		history:  history,
		log:      logger.Named("jobs"),
		now:      time.Now,
		baseCtx:  ctx,
		stopAll:  cancel,
		jobs:     make(map[string]*job),
	}
}

// History returns the search history fed by completed jobs.
func (m *Manager) History() *History {
	return m.history
}

// Start validates the query, supersedes any running job and launches a new
// one. It returns the new job id. ctx bounds only the wait for the previous
// job; the new job runs until it finishes, is cancelled or the manager shuts
// down.
func (m *Manager) Start(ctx context.Context, niche, city string) (string, error) {
	if err := m.searcher.Validate(niche, city); err != nil {
		return "", err
	}

	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.baseCtx.Err() != nil {
		return "", errors.New("job manager is shut down")
	}

	if prev := m.current.Load(); prev != nil {
		prev.cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "waiting for the previous job to stop")
		}
	}

	jobCtx, cancel := context.WithCancel(m.baseCtx)
	j := &job{
		id:      uuid.NewString(),
		niche:   niche,
		city:    city,
		started: m.now(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	j.progress.Store(&types.JobProgress{
		JobID:     j.id,
		Niche:     niche,
		City:      city,
		State:     types.JobRunning,
		Running:   true,
		Phase:     PhaseStarting,
		StartedAt: j.started,
		Results:   []types.BusinessRecord{},
	})

	m.mu.Lock()
	m.jobs[j.id] = j
	m.order = append(m.order, j.id)
	for len(m.order) > maxRetainedJobs {
		delete(m.jobs, m.order[0])
		m.order = m.order[1:]
	}
	m.mu.Unlock()
	m.current.Store(j)

	m.log.Infow("job started", logger.FieldJobID, j.id, logger.FieldNiche, niche, logger.FieldCity, city)
	go m.run(jobCtx, j)

	return j.id, nil
}

// Current returns the snapshot of the latest job, or an idle snapshot when
// no job has been started. The returned value must not be modified.
func (m *Manager) Current() *types.JobProgress {
	j := m.current.Load()
	if j == nil {
		return types.IdleProgress()
	}
	return m.view(j)
}

// Poll returns the snapshot of a job by id.
func (m *Manager) Poll(id string) (*types.JobProgress, error) {
	j, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.view(j), nil
}

// Cancel requests cancellation of a job. Cancelling a finished job is a no-op.
func (m *Manager) Cancel(id string) error {
	j, err := m.lookup(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// CancelCurrent requests cancellation of the latest job and reports whether
// it was still running.
func (m *Manager) CancelCurrent() bool {
	j := m.current.Load()
	if j == nil {
		return false
	}
	running := j.progress.Load().Running
	j.cancel()
	if running {
		m.log.Infow("job cancellation requested", logger.FieldJobID, j.id)
	}
	return running
}

// Wait blocks until the job finishes or ctx is done and returns its final
// snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (*types.JobProgress, error) {
	j, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-j.done:
		return j.progress.Load(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown cancels the running job, waits for it to exit and rejects
// further starts.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopAll()
	j := m.current.Load()
	if j == nil {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "job did not stop in time")
	}
}

func (m *Manager) lookup(id string) (*job, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrJobNotFound, "job %q", id)
	}
	return j, nil
}

// view returns the published snapshot; running jobs get a live elapsed time.
func (m *Manager) view(j *job) *types.JobProgress {
	p := j.progress.Load()
	if !p.Running {
		return p
	}
	live := *p
	live.ElapsedSeconds = m.now().Sub(j.started).Seconds()
	return &live
}

// update publishes a new snapshot built from the current one. Only the job
// goroutine calls it, so snapshots are never lost to concurrent writers.
func (m *Manager) update(j *job, mutate func(p *types.JobProgress)) *types.JobProgress {
	next := j.progress.Load().Clone()
	mutate(next)
	next.ElapsedSeconds = m.now().Sub(j.started).Seconds()
	j.progress.Store(next)
	return next
}

func (m *Manager) finish(j *job, state types.JobState, phase string, mutate func(p *types.JobProgress)) *types.JobProgress {
	return m.update(j, func(p *types.JobProgress) {
		if mutate != nil {
			mutate(p)
		}
		finished := m.now()
		p.State = state
		p.Running = false
		p.Phase = phase
		p.CurrentItem = ""
		p.FinishedAt = &finished
	})
}

func (m *Manager) run(ctx context.Context, j *job) {
	log := m.log.With(logger.FieldJobID, j.id)
	defer close(j.done)
	defer j.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("job panicked", logger.FieldError, fmt.Sprint(r))
			m.finish(j, types.JobFailed, fmt.Sprintf("Error: %v", r), func(p *types.JobProgress) {
				p.Error = fmt.Sprint(r)
			})
		}
	}()

	m.update(j, func(p *types.JobProgress) {
		p.Phase = PhaseLookup
		p.Percent = 10
	})

	records, err := m.searcher.Search(ctx, j.niche, j.city)
	if err != nil {
		if ctx.Err() != nil {
			log.Infow("job cancelled during lookup")
			m.finish(j, types.JobCancelled, PhaseInterrupted, nil)
			return
		}
		log.Errorw("places lookup failed", logger.FieldError, err)
		m.finish(j, types.JobFailed, fmt.Sprintf("Error: %v", err), func(p *types.JobProgress) {
			p.Error = err.Error()
		})
		return
	}

	if len(records) == 0 {
		log.Infow("no businesses found")
		m.finish(j, types.JobCompleted, PhaseNoResults, func(p *types.JobProgress) {
			p.Percent = 100
		})
		return
	}

	total := len(records)
	m.update(j, func(p *types.JobProgress) {
		p.Phase = fmt.Sprintf("Found %d businesses", total)
		p.Percent = 50
		p.Total = total
	})
	m.update(j, func(p *types.JobProgress) {
		p.Phase = PhaseEnrichment
		p.Percent = 60
	})

	results := m.enricher.EnrichAll(ctx, records, func(ev enrichment.ProgressEvent) {
		if !ev.Done() {
			m.update(j, func(p *types.JobProgress) {
				p.Phase = fmt.Sprintf("%s (%d/%d)", PhaseEnrichment, ev.Index+1, ev.Total)
				p.CurrentItem = ev.Label
				p.Percent = max(p.Percent, 60+float64(ev.Index)/float64(ev.Total)*30)
			})
			return
		}
		m.update(j, func(p *types.JobProgress) {
			p.Results = append(p.Results, *ev.Record)
			p.Found = len(p.Results)
			p.Percent = max(p.Percent, 60+float64(ev.Index+1)/float64(ev.Total)*30)
		})
	})

	if len(results) < total && ctx.Err() != nil {
		log.Infow("job cancelled", "processed", len(results), "total", total)
		m.finish(j, types.JobCancelled, PhaseInterrupted, func(p *types.JobProgress) {
			p.Results = cloneRecords(results)
			p.Found = len(results)
		})
		return
	}

	final := m.finish(j, types.JobCompleted, PhaseCompleted, func(p *types.JobProgress) {
		p.Results = cloneRecords(results)
		p.Found = len(results)
		p.Percent = 100
	})
	if len(results) > 0 {
		m.history.Record(j.niche, j.city, results)
	}
	log.Infow("job completed", logger.FieldCount, len(results), "elapsed_seconds", final.ElapsedSeconds)
}

// Package scheduler runs the periodic jobs of the server: wanted searches,
// artist refreshes, library scans and post-processing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/franz/albumhound/internal/util"
)

var (
	// ErrRunning is returned by RunNow while the job is already running
	ErrRunning = errors.New("job is already running")
	// ErrStopped is returned by RunNow once the scheduler shuts down
	ErrStopped = errors.New("scheduler stopped")
)

// Func is the body of a job
type Func func(ctx context.Context) error

// Job describes a periodic job. A zero interval registers the job without
// a timer so it only runs through RunNow.
type Job struct {
	Name     string
	Interval time.Duration
	Run      Func
	// Immediate runs the job once as soon as the scheduler starts
	Immediate bool
}

// Status is a snapshot of one job
type Status struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	Running   bool          `json:"running"`
	Runs      int           `json:"runs"`
	LastRun   time.Time     `json:"last_run,omitzero"`
	LastTook  time.Duration `json:"last_took"`
	NextRun   time.Time     `json:"next_run,omitzero"`
	LastError string        `json:"last_error,omitempty"`
}

type entry struct {
	job Job

	// held for the duration of a run
	guard sync.Mutex

	mu       sync.Mutex
	running  bool
	runs     int
	lastRun  time.Time
	lastTook time.Duration
	nextRun  time.Time
	lastErr  error
}

// Scheduler owns a set of named jobs
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	// stopping is set before Run waits on wg; no Add may follow it
	stopping bool
	wg       sync.WaitGroup
	now      func() time.Time
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Add registers a job. Jobs must be added before Run.
func (s *Scheduler) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("%w: job needs a name and a function", util.ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[j.Name]; ok {
		return fmt.Errorf("%w: duplicate job %q", util.ErrInvalidConfig, j.Name)
	}
	s.entries[j.Name] = &entry{job: j}
	return nil
}

// Run starts one ticker per job and blocks until ctx is canceled and
// every running job has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		if e.job.Interval <= 0 {
			util.DebugLog("Job %s has no interval, manual runs only", e.job.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, e)
	}

	<-ctx.Done()
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
	s.wg.Wait()
	util.DebugLog("Scheduler stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	if e.job.Immediate {
		s.execute(ctx, e)
	}

	t := time.NewTicker(e.job.Interval)
	defer t.Stop()
	e.setNext(s.now().Add(e.job.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.setNext(s.now().Add(e.job.Interval))
			s.execute(ctx, e)
		}
	}
}

// RunNow starts a job in the background. It fails when the job is
// unknown or still running.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("job %q: %w", name, util.ErrNotFound)
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.stopping || ctx.Err() != nil {
		return ErrStopped
	}
	if e.isRunning() {
		return ErrRunning
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, e)
	}()
	return nil
}

// execute runs the job unless a previous run is still going
func (s *Scheduler) execute(ctx context.Context, e *entry) bool {
	if !e.guard.TryLock() {
		util.WarnLog("Job %s is still running, skipping this run", e.job.Name)
		return false
	}
	defer e.guard.Unlock()

	start := s.now()
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	util.DebugLog("Job %s started", e.job.Name)
	err := e.job.Run(ctx)
	took := s.now().Sub(start)

	e.mu.Lock()
	e.running = false
	e.runs++
	e.lastRun = start
	e.lastTook = took
	e.lastErr = err
	e.mu.Unlock()

	switch {
	case err != nil && ctx.Err() == nil:
		util.ErrorLog("Job %s failed after %s: %v", e.job.Name, took.Round(time.Millisecond), err)
	case err == nil:
		util.DebugLog("Job %s finished in %s", e.job.Name, took.Round(time.Millisecond))
	}
	return true
}

func (e *entry) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *entry) setNext(t time.Time) {
	e.mu.Lock()
	e.nextRun = t
	e.mu.Unlock()
}

// Status returns a snapshot of every job, sorted by name
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := Status{
			Name:     e.job.Name,
			Interval: e.job.Interval,
			Running:  e.running,
			Runs:     e.runs,
			LastRun:  e.lastRun,
			LastTook: e.lastTook,
			NextRun:  e.nextRun,
		}
		if e.lastErr != nil {
			st.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

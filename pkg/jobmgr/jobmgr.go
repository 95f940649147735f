// Package jobmgr runs named background jobs with cancellation, lifecycle
// callbacks and a retrievable outcome for every job that has finished.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(func(ev jobmgr.Event) {
//	    logger.Info("job", zap.String("name", ev.Name), zap.String("state", string(ev.State)))
//	})
//
//	err := jm.Start("gateway", func(ctx context.Context) error {
//	    // do work until ctx is cancelled
//	    return nil
//	})
//
//	// later...
//	res, ok := jm.Result("gateway")
//
// There is no retry logic and no persistence. A job name can be reused once
// the previous job with that name has finished or been stopped.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrRunning is returned by Start when a job with the same name is active.
var ErrRunning = errors.New("job is already running")

// ErrNotRunning is returned by Stop when no job with that name is active.
var ErrNotRunning = errors.New("job not running")

// State is a lifecycle stage of a job.
type State string

const (
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateCanceled State = "canceled"
)

// Event is delivered to the Reporter on every state change.
type Event struct {
	Name  string
	State State
	Err   error
}

// Reporter receives lifecycle events for jobs.
type Reporter func(Event)

// Result is the recorded outcome of a finished job.
type Result struct {
	Name     string
	State    State
	Err      error
	Started  time.Time
	Finished time.Time
}

type job struct {
	name    string
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	results  map[string]Result
	reporter Reporter
}

// NewManager creates a new Manager. The reporter may be nil.
func NewManager(reporter Reporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		results:  make(map[string]Result),
		reporter: reporter,
	}
}

// Start runs runner on its own goroutine and returns immediately.
// The previous result for name is cleared.
func (m *Manager) Start(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("job %q: %w", name, ErrRunning)
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{name: name, cancel: cancel, done: make(chan struct{}), started: time.Now()}
	m.jobs[name] = j
	delete(m.results, name)
	m.mu.Unlock()

	m.report(Event{Name: name, State: StateRunning})

	go func() {
		defer close(j.done)
		defer cancel()

		err := runner(ctx)

		state := StateDone
		switch {
		case err != nil && ctx.Err() != nil:
			state = StateCanceled
		case err != nil:
			state = StateFailed
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.results[name] = Result{
			Name:     name,
			State:    state,
			Err:      err,
			Started:  j.started,
			Finished: time.Now(),
		}
		m.mu.Unlock()

		m.report(Event{Name: name, State: state, Err: err})
	}()

	return nil
}

// Stop cancels a running job and waits until its runner returns or ctx ends.
func (m *Manager) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %q: %w", name, ErrNotRunning)
	}

	j.cancel()
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a job with that name is active.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// Result returns the outcome of the last finished job with that name.
func (m *Manager) Result(name string) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[name]
	return r, ok
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) report(ev Event) {
	if m.reporter != nil {
		m.reporter(ev)
	}
}

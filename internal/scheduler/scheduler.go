// Package scheduler runs strategy evaluations at fixed local times, once
// per day per job. The clock loop polls every minute, so a process that
// wakes up late still runs everything due earlier that day.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
	"github.com/codeAPmind/tradingsystem/internal/signal"
)

// Preset evaluation times per market, chosen to land shortly after each
// market's daily close in the scheduler's local clock.
const (
	CloseTimeHK = "16:10"
	CloseTimeCN = "15:05"
	CloseTimeUS = "04:10"
)

// Job is one scheduled evaluation: a ticker, a strategy, and a wall-clock
// time of day in "HH:MM" form.
type Job struct {
	Name     string
	Ticker   string
	At       string
	Strategy string
	Params   map[string]float64
	Enabled  bool

	lastRun time.Time
}

// Runner evaluates a job and returns the signals it produced.
type Runner func(ctx context.Context, job Job) ([]*signal.Signal, error)

// Scheduler drives jobs through a Runner on a minute tick.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*Job

	runner   Runner
	onSignal func(*signal.Signal)
	onError  func(job, msg string)

	interval time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	log      zerolog.Logger
}

// Option configures a scheduler.
type Option func(*Scheduler)

// WithInterval overrides the poll interval. Tests only.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithNow overrides the scheduler's clock. Tests only.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// OnSignal installs the callback invoked for every actionable signal a job
// produces. HOLD signals are logged but not forwarded.
func (s *Scheduler) OnSignal(fn func(*signal.Signal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSignal = fn
}

// OnError installs the callback invoked when a job fails or panics.
func (s *Scheduler) OnError(fn func(job, msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// New builds a scheduler around a runner.
func New(runner Runner, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:     make(map[string]*Job),
		runner:   runner,
		interval: time.Minute,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. The At field must parse as "HH:MM"; duplicate names
// are rejected.
func (s *Scheduler) Add(job Job) error {
	if _, err := parseAt(job.At); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	s.jobs[job.Name] = &job
	return nil
}

// Remove drops a job and reports whether it existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; !ok {
		return false
	}
	delete(s.jobs, name)
	return true
}

// Enable marks a job runnable.
func (s *Scheduler) Enable(name string) bool { return s.setEnabled(name, true) }

// Disable stops a job from being scheduled without removing it.
func (s *Scheduler) Disable(name string) bool { return s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if ok {
		job.Enabled = enabled
	}
	return ok
}

// Jobs lists registered jobs sorted by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow executes a job immediately, regardless of schedule or enablement.
// Manual runs leave the daily schedule untouched, so the job still fires at
// its regular time.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	snapshot := *job
	s.mu.Unlock()

	return s.run(ctx, snapshot)
}

// Start launches the clock loop. It returns immediately; Stop waits for any
// in-flight job to finish.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the clock loop and waits for running jobs.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []Job
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		at, err := parseAt(job.At)
		if err != nil {
			continue
		}
		if !sameDay(job.lastRun, now) && pastTimeOfDay(now, at) {
			job.lastRun = now
			due = append(due, *job)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Name < due[j].Name })
	for _, job := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.run(ctx, job); err != nil {
			s.log.Error().Err(err).Str("job", job.Name).Msg("job failed")
		}
	}
}

// run executes one job with panic isolation so a single broken strategy
// cannot take down the scheduler or its sibling jobs.
func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
			s.fail(job.Name, err.Error())
		}
	}()

	sigs, err := s.runner(ctx, job)
	if err != nil {
		s.fail(job.Name, err.Error())
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	metrics.JobRunsTotal.WithLabelValues(job.Name, "ok").Inc()

	s.mu.Lock()
	onSignal := s.onSignal
	s.mu.Unlock()

	for _, sig := range sigs {
		if !sig.Actionable() {
			s.log.Debug().Str("job", job.Name).Str("ticker", sig.Ticker).Msg("hold, nothing to forward")
			continue
		}
		if onSignal != nil {
			onSignal(sig)
		}
	}
	return nil
}

func (s *Scheduler) fail(job, msg string) {
	metrics.JobRunsTotal.WithLabelValues(job, "error").Inc()
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()
	if onError != nil {
		onError(job, msg)
	}
}

type timeOfDay struct {
	hour, minute int
}

func parseAt(at string) (timeOfDay, error) {
	var tod timeOfDay
	if _, err := fmt.Sscanf(at, "%d:%d", &tod.hour, &tod.minute); err != nil {
		return tod, fmt.Errorf("bad time %q, want HH:MM", at)
	}
	if tod.hour < 0 || tod.hour > 23 || tod.minute < 0 || tod.minute > 59 {
		return tod, fmt.Errorf("time %q out of range", at)
	}
	return tod, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func pastTimeOfDay(now time.Time, at timeOfDay) bool {
	return now.Hour() > at.hour || (now.Hour() == at.hour && now.Minute() >= at.minute)
}

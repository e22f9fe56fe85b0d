package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/ambient-display/internal/poller"
	"github.com/i474232898/ambient-display/internal/rotator"
)

// ErrUnknownJob is returned by Trigger for a name no job was registered under.
var ErrUnknownJob = errors.New("unknown job")

// Job is a feed poll the scheduler runs on its interval. An interval of zero
// means the job only runs once at start and whenever it is triggered.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Scheduler drives the clock, every feed poller and the news rotator as
// independent tasks so a slow fetch never delays the others.
type Scheduler struct {
	scheduler *gocron.Scheduler
	clock     *Clock
	rotator   *rotator.Rotator
	jobs      map[string]Job
	order     []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler. rot may be nil when no news ticker is shown.
func New(clock *Clock, rot *rotator.Rotator, jobs ...Job) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		clock:     clock,
		rotator:   rot,
		jobs:      make(map[string]Job, len(jobs)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, j := range jobs {
		s.jobs[j.Name()] = j
		s.order = append(s.order, j.Name())
	}
	return s
}

// Start schedules every task and starts the underlying scheduler. Each poller
// fires immediately and then every interval, measured from its previous
// scheduled time.
func (s *Scheduler) Start() error {
	if s.clock != nil {
		s.clock.Publish()
		_, err := s.scheduler.Every(time.Second).WaitForSchedule().SingletonMode().Tag("clock").Do(func() {
			s.clock.Tick()
		})
		if err != nil {
			return fmt.Errorf("schedule clock: %w", err)
		}
	}

	for _, name := range s.order {
		job := s.jobs[name]
		if job.Interval() <= 0 {
			log.Printf("scheduler: %s has no interval; polling once now and on demand", name)
			s.runAsync(job)
			continue
		}

		log.Printf("scheduler: polling %s every %s", name, job.Interval())
		_, err := s.scheduler.Every(job.Interval()).SingletonMode().Tag(name).Do(func() {
			s.run(job)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	if s.rotator != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rotator.Run(s.ctx)
		}()
	}

	s.scheduler.StartAsync()
	return nil
}

// Trigger runs the named job now, outside its schedule. It does not wait for
// the poll to finish; a poll already in flight makes the triggered run a no-op.
func (s *Scheduler) Trigger(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.runAsync(job)
	return nil
}

func (s *Scheduler) runAsync(job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(job)
	}()
}

func (s *Scheduler) run(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	// Errors are logged by the poller; the next scheduled run is the only retry.
	if err := job.Run(s.ctx); err != nil && !errors.Is(err, poller.ErrInFlight) {
		log.Printf("scheduler: %s poll failed; keeping last good value", job.Name())
	}
}

// Stop stops the scheduler, cancels in-flight polls and waits for background tasks.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.wg.Wait()
}

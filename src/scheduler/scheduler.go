package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/apimgr/weather-probe/src/logging"
	"github.com/apimgr/weather-probe/src/metrics"
)

// Task represents a scheduled task
type Task struct {
	Name string
	// Cron expression: "0 * * * *", "@hourly", "@every 5m"
	Schedule string
	Fn       func(ctx context.Context) error

	entryID cron.EntryID
	running sync.Mutex

	mu      sync.Mutex
	lastRun *time.Time
	lastErr error
	runs    int
	skipped int
}

// TaskStatus is a snapshot of a task
type TaskStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Runs      int        `json:"runs"`
	Skipped   int        `json:"skipped"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	NextRun   time.Time  `json:"next_run"`
}

// Scheduler manages scheduled tasks using robfig/cron
type Scheduler struct {
	cron   *cron.Cron
	tasks  map[string]*Task
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// ParseSchedule validates a schedule using the same parser as the scheduler
func ParseSchedule(schedule string) (cron.Schedule, error) {
	return parser().Parse(schedule)
}

// standard five-field cron plus descriptors such as "@every 5m"
func parser() cron.Parser {
	return cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
}

// New creates a scheduler. Tasks receive a context derived from parent that
// is also canceled by Stop.
func New(parent context.Context, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser())),
		tasks:  make(map[string]*Task),
		logger: logger.With("scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddTask adds a new task to the scheduler with a cron schedule
func (s *Scheduler) AddTask(name string, schedule string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task '%s' already exists", name)
	}

	task := &Task{
		Name:     name,
		Schedule: schedule,
		Fn:       fn,
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("failed to add task '%s' with schedule '%s': %w", name, schedule, err)
	}

	task.entryID = entryID
	s.tasks[name] = task
	return nil
}

// Reschedule moves an existing task to a new schedule
func (s *Scheduler) Reschedule(name string, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[name]
	if !ok {
		return fmt.Errorf("task '%s' not found", name)
	}
	if task.Schedule == schedule {
		return nil
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("failed to reschedule task '%s' to '%s': %w", name, schedule, err)
	}

	s.cron.Remove(task.entryID)
	task.entryID = entryID
	task.Schedule = schedule
	s.logger.Info("task '%s' rescheduled to %s", name, schedule)
	return nil
}

// RunNow executes a task immediately, outside its schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	task, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task '%s' not found", name)
	}
	return s.executeTask(task)
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.cron.Start()
	s.logger.Info("scheduler started (%d scheduled tasks)", len(s.tasks))
}

// Stop cancels running tasks and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// executeTask runs a task unless a previous run of it is still in flight
func (s *Scheduler) executeTask(task *Task) error {
	if !task.running.TryLock() {
		task.mu.Lock()
		task.skipped++
		task.mu.Unlock()
		metrics.ScheduledRunsSkipped.WithLabelValues(task.Name).Inc()
		s.logger.Warn("task '%s' still running, skipping this run", task.Name)
		return nil
	}
	defer task.running.Unlock()

	start := time.Now()
	err := task.Fn(s.ctx)
	end := time.Now()

	task.mu.Lock()
	task.lastRun = &end
	task.lastErr = err
	task.runs++
	task.mu.Unlock()

	elapsed := end.Sub(start).Round(time.Millisecond)
	if err != nil {
		s.logger.Error("task '%s' failed after %v: %v", task.Name, elapsed, err)
	} else {
		s.logger.Debug("task '%s' completed in %v", task.Name, elapsed)
	}
	return err
}

// Status returns the status of all tasks sorted by name
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := make([]TaskStatus, 0, len(s.tasks))
	for _, task := range s.tasks {
		task.mu.Lock()
		st := TaskStatus{
			Name:     task.Name,
			Schedule: task.Schedule,
			Runs:     task.runs,
			Skipped:  task.skipped,
			LastRun:  task.lastRun,
		}
		if task.lastErr != nil {
			st.LastError = task.lastErr.Error()
		}
		task.mu.Unlock()

		if entry := s.cron.Entry(task.entryID); entry.ID != 0 {
			st.NextRun = entry.Next
		}
		status = append(status, st)
	}

	sort.Slice(status, func(i, j int) bool { return status[i].Name < status[j].Name })
	return status
}

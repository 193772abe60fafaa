package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/observability"
)

// Job is one scheduled unit of work. Jobs are identified by name: adding a
// job with an existing name replaces it, so restarts never duplicate the
// standing maintenance jobs.
type Job struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	NextRunAt       time.Time `json:"next_run_at"`
	Recurring       bool      `json:"recurring"`
	IntervalSeconds int64     `json:"interval_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Scheduler persists jobs to a JSON file and fires a callback when they
// come due. Timing is coarse (one-second ticks), which is plenty for
// daily and weekly maintenance work.
type Scheduler struct {
	mu        sync.Mutex
	jobs      map[string]Job
	storePath string
	onTrigger func(context.Context, Job)
	log       *observability.Logger
}

func New(dataDir string, onTrigger func(context.Context, Job)) (*Scheduler, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}

	s := &Scheduler{
		jobs:      map[string]Job{},
		storePath: filepath.Join(dataDir, "jobs.json"),
		onTrigger: onTrigger,
		log:       observability.Component("scheduler"),
	}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddOneShot schedules a job that runs once and is then removed.
func (s *Scheduler) AddOneShot(name string, runAt time.Time) (string, error) {
	return s.add(Job{
		ID:        uuid.NewString(),
		Name:      name,
		NextRunAt: runAt,
		CreatedAt: time.Now().UTC(),
	})
}

// AddRecurring schedules a job that reschedules itself by interval after
// each run.
func (s *Scheduler) AddRecurring(name string, firstRun time.Time, interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be > 0")
	}
	return s.add(Job{
		ID:              uuid.NewString(),
		Name:            name,
		NextRunAt:       firstRun,
		Recurring:       true,
		IntervalSeconds: int64(interval.Seconds()),
		CreatedAt:       time.Now().UTC(),
	})
}

func (s *Scheduler) add(job Job) (string, error) {
	if job.Name == "" {
		return "", fmt.Errorf("name is required")
	}
	if job.NextRunAt.IsZero() {
		return "", fmt.Errorf("run time is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.jobs {
		if existing.Name == job.Name {
			delete(s.jobs, id)
		}
	}
	s.jobs[job.ID] = job
	if err := s.saveLocked(); err != nil {
		return "", err
	}
	s.log.Info(context.Background(), "job scheduled",
		"job", job.Name, "job_id", job.ID, "run_at", job.NextRunAt, "recurring", job.Recurring)
	return job.ID, nil
}

func (s *Scheduler) Delete(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return fmt.Errorf("job not found: %s", jobID)
	}
	delete(s.jobs, jobID)
	if err := s.saveLocked(); err != nil {
		return err
	}
	s.log.Info(context.Background(), "job deleted", "job_id", jobID)
	return nil
}

// List returns all jobs ordered by next run time.
func (s *Scheduler) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextRunAt.Before(out[j].NextRunAt)
	})
	return out
}

// Start runs the trigger loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	s.log.Info(ctx, "scheduler loop started")
	for {
		if err := s.TriggerDue(ctx, time.Now().UTC()); err != nil {
			s.log.Error(ctx, "scheduler trigger failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "scheduler loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// TriggerDue fires every job due at now. Recurring jobs are rescheduled
// past now before the callback runs, so a slow callback cannot double-fire.
func (s *Scheduler) TriggerDue(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	due := make([]Job, 0)
	for _, j := range s.jobs {
		if !j.NextRunAt.After(now) {
			due = append(due, j)
		}
	}

	if len(due) == 0 {
		s.mu.Unlock()
		return nil
	}

	for _, j := range due {
		if j.Recurring {
			next := j.NextRunAt
			interval := time.Duration(j.IntervalSeconds) * time.Second
			for !next.After(now) {
				next = next.Add(interval)
			}
			j.NextRunAt = next
			s.jobs[j.ID] = j
		} else {
			delete(s.jobs, j.ID)
		}
	}

	if err := s.saveLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for _, j := range due {
		s.log.Info(ctx, "job triggered", "job", j.Name, "job_id", j.ID, "recurring", j.Recurring)
		if s.onTrigger != nil {
			s.onTrigger(ctx, j)
		}
	}
	return nil
}

func (s *Scheduler) loadLocked() error {
	if _, err := os.Stat(s.storePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat scheduler store: %w", err)
	}
	bytes, err := os.ReadFile(s.storePath)
	if err != nil {
		return fmt.Errorf("read scheduler store: %w", err)
	}
	if len(bytes) == 0 {
		return nil
	}
	var jobs []Job
	if err := json.Unmarshal(bytes, &jobs); err != nil {
		return fmt.Errorf("decode scheduler store: %w", err)
	}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	s.log.Info(context.Background(), "jobs loaded", "count", len(jobs))
	return nil
}

func (s *Scheduler) saveLocked() error {
	list := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		list = append(list, j)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].NextRunAt.Before(list[j].NextRunAt)
	})

	bytes, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scheduler store: %w", err)
	}
	bytes = append(bytes, '\n')
	if err := os.WriteFile(s.storePath, bytes, 0o644); err != nil {
		return fmt.Errorf("write scheduler store: %w", err)
	}
	return nil
}

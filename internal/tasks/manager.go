package tasks

import (
	"context"
	"time"

	"folio/internal/observability"
	"folio/internal/pipeline"
	"folio/internal/scheduler"
)

const (
	jobDailyUpdate   = "daily-update"
	jobBackupUpdate  = "backup-update"
	jobWeeklyRefresh = "weekly-refresh"
	jobInitialUpdate = "initial-update"

	dailyHour  = 2  // 02:00 market-local, before Indian markets open
	backupHour = 14 // 14:00, catches a failed morning run

	// backupSkipWindow: the backup run is a no-op when the last pipeline
	// run is this recent.
	backupSkipWindow = 18 * time.Hour
)

// Manager owns the standing maintenance jobs: a daily pipeline run, an
// afternoon backup run, a weekly full refresh, and a one-shot update on
// startup.
type Manager struct {
	sched   *scheduler.Scheduler
	updater *pipeline.Updater
	loc     *time.Location
	log     *observability.Logger
}

func NewManager(dataDir string, updater *pipeline.Updater) (*Manager, error) {
	m := &Manager{
		updater: updater,
		loc:     marketLocation(),
		log:     observability.Component("tasks"),
	}
	sched, err := scheduler.New(dataDir, m.run)
	if err != nil {
		return nil, err
	}
	m.sched = sched
	return m, nil
}

func marketLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Register installs the standing jobs. Names replace prior entries, so
// calling this on every startup is safe.
func (m *Manager) Register() error {
	if _, err := m.sched.AddRecurring(jobDailyUpdate, m.nextAtHour(dailyHour), 24*time.Hour); err != nil {
		return err
	}
	if _, err := m.sched.AddRecurring(jobBackupUpdate, m.nextAtHour(backupHour), 24*time.Hour); err != nil {
		return err
	}
	if _, err := m.sched.AddRecurring(jobWeeklyRefresh, m.nextSunday(1), 7*24*time.Hour); err != nil {
		return err
	}
	if _, err := m.sched.AddOneShot(jobInitialUpdate, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// Start runs the scheduler loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.sched.Start(ctx)
}

// Jobs lists the scheduled jobs for the status endpoint.
func (m *Manager) Jobs() []scheduler.Job {
	return m.sched.List()
}

func (m *Manager) run(ctx context.Context, job scheduler.Job) {
	switch job.Name {
	case jobDailyUpdate:
		m.runUpdate(ctx, "daily_update")
	case jobBackupUpdate:
		m.runBackup(ctx)
	case jobWeeklyRefresh:
		if _, err := m.updater.FullRefresh(ctx); err != nil {
			m.log.Error(ctx, "weekly refresh failed", "error", err)
		}
	case jobInitialUpdate:
		m.runUpdate(ctx, "initial_update")
	default:
		m.log.Warn(ctx, "unknown job", "job", job.Name)
	}
}

func (m *Manager) runUpdate(ctx context.Context, trigger string) {
	info, err := m.updater.UpdateAll(ctx, trigger)
	if err != nil {
		m.log.Error(ctx, "pipeline run failed", "trigger", trigger, "error", err)
		return
	}
	if !info.Success {
		m.log.Warn(ctx, "pipeline run had errors", "trigger", trigger, "errors", info.Errors)
	}
}

// runBackup skips when the morning run already delivered fresh data.
func (m *Manager) runBackup(ctx context.Context) {
	last, err := m.updater.LastUpdate()
	if err != nil {
		m.log.Warn(ctx, "read last update failed", "error", err)
	}
	if last != nil && time.Since(last.Timestamp) < backupSkipWindow {
		m.log.Info(ctx, "skipping backup update, last run is recent",
			"last_run", last.Timestamp)
		return
	}
	m.runUpdate(ctx, "backup_update")
}

// nextAtHour returns the next occurrence of hour:00 in the market timezone.
func (m *Manager) nextAtHour(hour int) time.Time {
	now := time.Now().In(m.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, m.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.UTC()
}

// nextSunday returns the next Sunday at hour:00 in the market timezone.
func (m *Manager) nextSunday(hour int) time.Time {
	now := time.Now().In(m.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, m.loc)
	for next.Weekday() != time.Sunday || !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.UTC()
}

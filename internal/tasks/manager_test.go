package tasks

import (
	"context"
	"testing"
	"time"

	"folio/internal/cache"
	"folio/internal/config"
	"folio/internal/history"
	"folio/internal/pipeline"
	"folio/internal/scheduler"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	analyzer, err := history.NewAnalyzer(dir)
	if err != nil {
		t.Fatal(err)
	}
	store, err := cache.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	updater := pipeline.NewUpdater(analyzer, store, &config.Config{DataDir: dir, CacheTTL: time.Hour})
	updater.SetQuoteFunc(func(context.Context, string) (float64, error) { return 100, nil })

	m, err := NewManager(dir, updater)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRegisterInstallsStandingJobs(t *testing.T) {
	m := testManager(t)
	if err := m.Register(); err != nil {
		t.Fatal(err)
	}

	jobs := m.Jobs()
	if len(jobs) != 4 {
		t.Fatalf("jobs = %d, want 4", len(jobs))
	}

	byName := map[string]scheduler.Job{}
	for _, j := range jobs {
		byName[j.Name] = j
	}
	if j := byName[jobDailyUpdate]; !j.Recurring || j.IntervalSeconds != 86400 {
		t.Fatalf("daily job misconfigured: %+v", j)
	}
	if j := byName[jobWeeklyRefresh]; !j.Recurring || j.IntervalSeconds != 7*86400 {
		t.Fatalf("weekly job misconfigured: %+v", j)
	}
	if j := byName[jobInitialUpdate]; j.Recurring {
		t.Fatalf("initial update should be one-shot: %+v", j)
	}
	if byName[jobWeeklyRefresh].NextRunAt.In(m.loc).Weekday() != time.Sunday {
		t.Fatal("weekly refresh not scheduled for a Sunday")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	m := testManager(t)
	if err := m.Register(); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(); err != nil {
		t.Fatal(err)
	}
	if got := len(m.Jobs()); got != 4 {
		t.Fatalf("jobs after double register = %d, want 4", got)
	}
}

func TestInitialUpdateRunsPipeline(t *testing.T) {
	m := testManager(t)
	if err := m.Register(); err != nil {
		t.Fatal(err)
	}

	// the initial one-shot is due immediately
	if err := m.sched.TriggerDue(context.Background(), time.Now().UTC().Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	last, err := m.updater.LastUpdate()
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Trigger != "initial_update" {
		t.Fatalf("last update = %+v", last)
	}
}

func TestBackupSkipsAfterRecentRun(t *testing.T) {
	m := testManager(t)

	// fresh run just happened
	if _, err := m.updater.UpdateAll(context.Background(), "daily_update"); err != nil {
		t.Fatal(err)
	}

	m.runBackup(context.Background())

	last, err := m.updater.LastUpdate()
	if err != nil {
		t.Fatal(err)
	}
	if last.Trigger != "daily_update" {
		t.Fatalf("backup should have skipped, but trigger = %q", last.Trigger)
	}
}

func TestBackupRunsWithoutPriorRun(t *testing.T) {
	m := testManager(t)

	m.runBackup(context.Background())

	last, err := m.updater.LastUpdate()
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Trigger != "backup_update" {
		t.Fatalf("last update = %+v", last)
	}
}

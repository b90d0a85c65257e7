package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// Janitor removes upload runs older than the retention period on a schedule.
type Janitor struct {
	scheduler *gocron.Scheduler
	lock      sync.Locker
	now       func() time.Time
	dir       string
	retention time.Duration
}

// NewJanitor returns a Janitor for the run directories under dir. lock is held
// while pruning so a run in progress is never removed underneath the pipeline.
func NewJanitor(dir string, retention time.Duration, lock sync.Locker) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.Local),
		lock:      lock,
		now:       time.Now,
		dir:       dir,
		retention: retention,
	}
}

// Start prunes once and then every interval until Stop.
func (j *Janitor) Start(interval time.Duration) error {
	_, err := j.scheduler.Every(interval).Do(func() {
		if _, err := j.Prune(); err != nil {
			slog.Error("Failed to prune upload runs", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	j.scheduler.StartAsync()
	return nil
}

// Stop stops the schedule.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// Prune deletes run directories last modified before the retention cutoff and
// returns how many were removed. Entries that are not run IDs are left alone.
func (j *Janitor) Prune() (int, error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", j.dir, err)
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := uuid.Parse(entry.Name()); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("Failed to stat upload run", "run", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(j.dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove run %s: %w", entry.Name(), err)
		}
		removed++
	}

	if removed > 0 {
		slog.Info("Pruned upload runs", "removed", removed, "retention", j.retention)
	}
	return removed, nil
}

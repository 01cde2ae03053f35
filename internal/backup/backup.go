// Package backup snapshots the prediction ledger to timestamped directories
// on local disk and restores missing days from the most recent snapshot that
// has them.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mlbhits/pipeline/internal/metrics"
	"mlbhits/pipeline/internal/store"
)

const (
	dirPrefix     = "backup_"
	timestampForm = "20060102_150405"

	// DefaultRetentionDays is how long snapshots are kept before Cleanup
	// removes them.
	DefaultRetentionDays = 30
)

// Manager writes and restores ledger snapshots.
type Manager struct {
	store     store.Store
	backupDir string
	now       func() time.Time
}

// NewManager creates a backup manager rooted at backupDir.
func NewManager(st store.Store, backupDir string, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: st, backupDir: backupDir, now: now}
}

// Snapshot copies every prediction and top-pick document into a new
// timestamped directory and returns its path.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	dir := filepath.Join(m.backupDir, dirPrefix+m.now().Format(timestampForm))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.RecordBackup("failure")
		return "", fmt.Errorf("creating backup dir: %w", err)
	}

	var copied int
	for _, prefix := range []string{"predictions/", "toppicks/"} {
		keys, err := m.store.List(ctx, prefix)
		if err != nil {
			metrics.RecordBackup("failure")
			return "", fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, key := range keys {
			data, err := m.store.Read(ctx, key)
			if err != nil {
				metrics.RecordBackup("failure")
				return "", fmt.Errorf("reading %s: %w", key, err)
			}
			name := strings.ReplaceAll(key, "/", "_") + ".json"
			if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
				metrics.RecordBackup("failure")
				return "", fmt.Errorf("writing %s: %w", name, err)
			}
			copied++
		}
	}

	metrics.RecordBackup("success")
	log.Info().Str("dir", dir).Int("documents", copied).Msg("Ledger snapshot written")
	return dir, nil
}

// Recover searches snapshots newest first for the date's prediction document
// and merges it back through WriteIfAbsent, so a ledger day that reappeared
// by other means is never clobbered. Returns true when a document was found.
func (m *Manager) Recover(ctx context.Context, date string) (bool, error) {
	dirs, err := m.snapshotDirs()
	if err != nil {
		return false, err
	}

	predFile := "predictions_" + date + ".json"
	picksFile := "toppicks_" + date + ".json"
	for _, dir := range dirs {
		data, err := os.ReadFile(filepath.Join(dir, predFile))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("reading %s: %w", predFile, err)
		}
		if !json.Valid(data) {
			log.Warn().Str("dir", dir).Str("file", predFile).Msg("Corrupt snapshot document, skipping")
			continue
		}

		created, err := m.store.WriteIfAbsent(ctx, "predictions/"+date, data)
		if err != nil {
			return false, fmt.Errorf("restoring predictions/%s: %w", date, err)
		}
		if picks, err := os.ReadFile(filepath.Join(dir, picksFile)); err == nil && json.Valid(picks) {
			if _, err := m.store.WriteIfAbsent(ctx, "toppicks/"+date, picks); err != nil {
				return false, fmt.Errorf("restoring toppicks/%s: %w", date, err)
			}
		}

		log.Info().Str("date", date).Str("dir", dir).Bool("created", created).Msg("Ledger day restored from snapshot")
		return true, nil
	}
	return false, nil
}

// Cleanup deletes snapshot directories older than keepDays.
func (m *Manager) Cleanup(keepDays int) error {
	if keepDays <= 0 {
		keepDays = DefaultRetentionDays
	}
	now := m.now()
	cutoff := now.AddDate(0, 0, -keepDays)

	dirs, err := m.snapshotDirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		ts, err := time.ParseInLocation(timestampForm, strings.TrimPrefix(filepath.Base(dir), dirPrefix), now.Location())
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("removing %s: %w", dir, err)
			}
			log.Info().Str("dir", dir).Msg("Expired snapshot removed")
		}
	}
	return nil
}

// LatestAge returns how old the newest snapshot is. The second return is
// false when no snapshots exist at all.
func (m *Manager) LatestAge() (time.Duration, bool, error) {
	dirs, err := m.snapshotDirs()
	if err != nil {
		return 0, false, err
	}
	if len(dirs) == 0 {
		return 0, false, nil
	}
	now := m.now()
	ts, err := time.ParseInLocation(timestampForm, strings.TrimPrefix(filepath.Base(dirs[0]), dirPrefix), now.Location())
	if err != nil {
		return 0, false, fmt.Errorf("parsing snapshot timestamp: %w", err)
	}
	return now.Sub(ts), true, nil
}

// snapshotDirs lists snapshot directories newest first.
func (m *Manager) snapshotDirs() ([]string, error) {
	entries, err := os.ReadDir(m.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), dirPrefix) {
			dirs = append(dirs, filepath.Join(m.backupDir, e.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	return dirs, nil
}

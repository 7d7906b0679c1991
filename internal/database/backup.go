package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campusres/internal/config"
	"campusres/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "campusres_"
	snapshotLayout = "20060102_150405"
)

// BackupService snapshots the sqlite ledger with VACUUM INTO on a timer and
// prunes snapshots past the retention window.
type BackupService struct {
	db     *DB
	dbPath string
	cfg    config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &BackupService{db: db, dbPath: dbPath, cfg: cfg, logger: logger, now: time.Now}
}

// Start blocks until ctx is done. The first snapshot is taken immediately.
func (s *BackupService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("sqlite backups disabled")
		return
	}
	s.logger.Info().Dur("interval", s.cfg.Interval).Str("dir", s.cfg.StoragePath).Msg("sqlite backups enabled")

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	if _, err := s.Snapshot(ctx); err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		metrics.IncBackup("failed")
		return
	}
	metrics.IncBackup("ok")
	s.Prune()
}

// Snapshot writes a consistent copy of the database, checks that it opens
// and returns its path.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	if s.dbPath == ":memory:" {
		return "", fmt.Errorf("in-memory database has nothing to back up")
	}
	if err := os.MkdirAll(s.cfg.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	path := filepath.Join(s.cfg.StoragePath, snapshotPrefix+s.now().Format(snapshotLayout)+".db")
	quoted := strings.ReplaceAll(path, "'", "''")
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO '"+quoted+"'"); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	reservations, err := verifySnapshot(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("verify snapshot: %w", err)
	}

	s.logger.Info().Str("path", path).Int("reservations", reservations).Msg("backup written")
	return path, nil
}

// verifySnapshot runs sqlite's integrity check on the copy and counts its
// reservations.
func verifySnapshot(ctx context.Context, path string) (int, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return 0, err
	}
	if result != "ok" {
		return 0, fmt.Errorf("integrity check: %s", result)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Prune deletes snapshots whose timestamp is older than RetentionDays.
// Files that do not look like snapshots are left alone.
func (s *BackupService) Prune() {
	if s.cfg.RetentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read backup dir")
		return
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	for _, e := range entries {
		taken, ok := snapshotTime(e.Name())
		if e.IsDir() || !ok || !taken.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.StoragePath, e.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", e.Name()).Msg("remove old backup")
			continue
		}
		s.logger.Info().Str("file", e.Name()).Msg("old backup removed")
	}
}

func snapshotTime(name string) (time.Time, bool) {
	stamp, ok := strings.CutPrefix(name, snapshotPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, ok = strings.CutSuffix(stamp, ".db")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(snapshotLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campusres/internal/config"
	"campusres/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupSnapshot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "campus.db")
	logger := zerolog.Nop()
	ctx := context.Background()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.SaveCategory(ctx, &models.Category{Name: "Tablets"}))

	s := NewBackupService(db, dbPath, config.BackupConfig{Enabled: true, StoragePath: filepath.Join(dir, "backups")}, &logger)
	s.now = func() time.Time { return time.Date(2030, 3, 11, 9, 30, 0, 0, time.Local) }

	path, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "campusres_20300311_093000.db", filepath.Base(path))

	restored, err := NewDB(path, &logger)
	require.NoError(t, err)
	defer restored.Close()

	cats, err := restored.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Tablets", cats[0].Name)
}

func TestBackupSnapshotInMemory(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	s := NewBackupService(db, ":memory:", config.BackupConfig{Enabled: true, StoragePath: t.TempDir()}, &logger)
	_, err = s.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestBackupPrune(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.Nop()
	s := NewBackupService(nil, "unused", config.BackupConfig{StoragePath: dir, RetentionDays: 7}, &logger)
	s.now = func() time.Time { return time.Date(2030, 3, 20, 12, 0, 0, 0, time.Local) }

	files := map[string]bool{
		"campusres_20300301_000000.db": false, // старше недели
		"campusres_20300319_000000.db": true,
		"campusres_garbage.db":         true,
		"notes.txt":                    true,
	}
	for name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	s.Prune()

	for name, kept := range files {
		if kept {
			assert.FileExists(t, filepath.Join(dir, name))
		} else {
			assert.NoFileExists(t, filepath.Join(dir, name))
		}
	}
}

func TestBackupDisabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, "any", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

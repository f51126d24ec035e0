// internal/download/files_test.go
package download

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPurgeOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-10 * 24 * time.Hour)
	young := time.Now().Add(-time.Hour)

	writeFile(t, dir, "stale_report.csv", "x", old)     // old + matching: deleted
	writeFile(t, dir, "stale_notes.txt", "x", old)      // old, not matching: retained
	writeFile(t, dir, "fresh_report.csv", "x", young)   // matching, young: retained

	deleted, err := PurgeOldFiles(dir, 7*24*time.Hour, "*.csv", zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = os.Stat(filepath.Join(dir, "stale_report.csv"))
	assert.True(t, os.IsNotExist(err), "old matching file should be gone")
	_, err = os.Stat(filepath.Join(dir, "stale_notes.txt"))
	assert.NoError(t, err, "non-matching file must survive")
	_, err = os.Stat(filepath.Join(dir, "fresh_report.csv"))
	assert.NoError(t, err, "young file must survive")
}

func TestPurgeOldFilesMissingDirIsNoop(t *testing.T) {
	deleted, err := PurgeOldFiles(filepath.Join(t.TempDir(), "absent"), time.Hour, "*", zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPurgeOldFilesBadPattern(t *testing.T) {
	_, err := PurgeOldFiles(t.TempDir(), time.Hour, "[", zap.NewNop())
	require.Error(t, err)
}

func TestWaitForStable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "export.csv", "complete content", time.Time{})

	err := WaitForStable(context.Background(), path, 100*time.Millisecond, 5*time.Second)

	assert.NoError(t, err)
}

func TestWaitForStableTimeoutOnMissingFile(t *testing.T) {
	err := WaitForStable(context.Background(), filepath.Join(t.TempDir(), "never.csv"),
		50*time.Millisecond, 300*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not stabilize")
}

func TestWaitForStableRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "", time.Time{})

	err := WaitForStable(context.Background(), path, 50*time.Millisecond, 300*time.Millisecond)

	require.Error(t, err, "zero-size files never count as stable")
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.csv", "a,b", time.Time{})

	info, err := Info(path)

	require.NoError(t, err)
	assert.Equal(t, "report.csv", info.Name)
	assert.Equal(t, int64(3), info.SizeBytes)
	assert.Equal(t, ".csv", info.Extension)
}

func TestInfoMissingFile(t *testing.T) {
	_, err := Info(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.csv", "a,b\n", time.Time{})

	backupPath, err := Backup(path, "")

	require.NoError(t, err)
	assert.Contains(t, backupPath, filepath.Join(dir, "backups"))
	content, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(content))
}

func TestEnsureDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(target))
	stat, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

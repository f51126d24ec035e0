// internal/download/files.go
// Supporting file utilities: the download stability probe, old-artifact
// purging, and metadata/backup helpers.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gobwas/glob"
	"go.uber.org/zap"
)

// stablePollInterval is how often the stability probe samples file size.
const stablePollInterval = 500 * time.Millisecond

// WaitForStable samples the file's size on a fixed interval and returns nil
// once the size has been unchanged and non-zero for stableFor. It offers a
// stronger completion guarantee than the grace-period heuristic for callers
// that need one. Returns an error if maxWait elapses first.
func WaitForStable(ctx context.Context, path string, stableFor, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	var (
		lastSize    int64
		stableSince time.Time
	)
	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err == nil {
			size := info.Size()
			switch {
			case size > 0 && size == lastSize:
				if stableSince.IsZero() {
					stableSince = time.Now()
				} else if time.Since(stableSince) >= stableFor {
					return nil
				}
			default:
				stableSince = time.Time{}
				lastSize = size
			}
		}
		if err := sleepCtx(ctx, stablePollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("file %s did not stabilize within %v", filepath.Base(path), maxWait)
}

// PurgeOldFiles deletes files in dir older than maxAge whose base name
// matches the glob pattern, and returns how many were removed. Younger or
// non-matching files are retained. Best effort: per-file removal failures
// are logged and skipped.
func PurgeOldFiles(dir string, maxAge time.Duration, pattern string, logger *zap.Logger) (int, error) {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compiling purge pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !matcher.Match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove old file", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Debug("Deleted old file", zap.String("name", entry.Name()))
		deleted++
	}
	if deleted > 0 {
		logger.Info("Purged old files", zap.Int("count", deleted), zap.String("dir", dir))
	}
	return deleted, nil
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// FileInfo summarizes a file on disk.
type FileInfo struct {
	Name      string
	SizeBytes int64
	Modified  time.Time
	Extension string
	Path      string
}

// Info returns metadata for the file, or an error if it does not exist.
func Info(path string) (FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return FileInfo{
		Name:      filepath.Base(path),
		SizeBytes: stat.Size(),
		Modified:  stat.ModTime(),
		Extension: filepath.Ext(path),
		Path:      abs,
	}, nil
}

// Backup copies the file into backupDir (created if needed) under a
// timestamped name and returns the backup path. An empty backupDir defaults
// to a "backups" directory next to the source file.
func Backup(path, backupDir string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(path), "backups")
	}
	if err := EnsureDir(backupDir); err != nil {
		return "", err
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	name := fmt.Sprintf("%s_%s%s", stem, time.Now().Format("20060102_150405"), ext)
	destPath := filepath.Join(backupDir, name)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("creating backup %s: %w", destPath, err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", fmt.Errorf("copying to backup %s: %w", destPath, err)
	}
	return destPath, nil
}

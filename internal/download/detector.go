// internal/download/detector.go
// Filesystem-level detection of a completed browser download. The browser
// gives no usable completion callback for exports triggered inside the page,
// so the detector waits a fixed grace period, scans the download directory
// for the newest fully-written file, and claims it by renaming it to a
// unique, run-scoped name.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// inProgressSuffix marks a file Chrome is still writing.
const inProgressSuffix = ".crdownload"

// timestampLayout produces second-granularity artifact names, unique per run.
const timestampLayout = "2006-01-02_15-04-05"

var (
	// ErrNoFileFound means the grace period elapsed and the directory held
	// no fully-written file.
	ErrNoFileFound = errors.New("no downloaded file found")

	// ErrRenameFailed means the discovered file could not be renamed, e.g.
	// it vanished between discovery and rename.
	ErrRenameFailed = errors.New("renaming downloaded file failed")
)

// Artifact describes a claimed download. It only exists between detection
// and the workflow result; callers keep the Path.
type Artifact struct {
	Path       string
	DetectedAt time.Time
	Prefix     string
}

// Detector discovers and claims the most recently produced artifact in a
// download directory.
type Detector struct {
	dir    string
	grace  time.Duration
	logger *zap.Logger

	// now is swappable so rename timestamps are deterministic in tests.
	now func() time.Time
}

// NewDetector creates a detector for the given directory. The grace period
// is how long Await waits before scanning, standing in for a completion
// signal the browser does not provide.
func NewDetector(dir string, grace time.Duration, logger *zap.Logger) *Detector {
	return &Detector{
		dir:    dir,
		grace:  grace,
		logger: logger.Named("download"),
		now:    time.Now,
	}
}

// Await waits the grace period, then selects the newest fully-written file
// in the directory and renames it to {prefix}_{timestamp}{ext}. Files still
// carrying the in-progress marker suffix are never candidates.
func (d *Detector) Await(ctx context.Context, prefix string) (Artifact, error) {
	d.logger.Info("Waiting for download to complete",
		zap.Duration("grace", d.grace), zap.String("dir", d.dir))
	if err := sleepCtx(ctx, d.grace); err != nil {
		return Artifact{}, err
	}

	latest, err := FindLatest(d.dir)
	if err != nil {
		return Artifact{}, err
	}

	detected := d.now()
	ext := filepath.Ext(latest)
	name := fmt.Sprintf("%s_%s%s", prefix, detected.Format(timestampLayout), ext)
	dest := filepath.Join(filepath.Dir(latest), name)

	if err := os.Rename(latest, dest); err != nil {
		return Artifact{}, fmt.Errorf("%w: %s -> %s: %v", ErrRenameFailed, latest, dest, err)
	}

	d.logger.Info("Artifact claimed",
		zap.String("from", filepath.Base(latest)), zap.String("to", name))
	return Artifact{Path: dest, DetectedAt: detected, Prefix: prefix}, nil
}

// FindLatest returns the path of the most recently modified fully-written
// file in dir. Directories and in-progress downloads are excluded.
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading download directory %s: %w", dir, err)
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) == inProgressSuffix {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entry vanished mid-scan; it is not our artifact.
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, entry.Name())
			latestTime = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoFileFound, dir)
	}
	return latest, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// internal/workflow/runner.go
// The orchestrator: acquires a browser session, runs the authentication and
// export state machines in order, and guarantees cleanup on every exit path.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/auth"
	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/download"
	"github.com/xkilldash9x/jirapull/internal/interact"
	"github.com/xkilldash9x/jirapull/internal/jira"
)

// Mode selects how much of the pipeline runs.
type Mode string

const (
	// ModeFull authenticates, hands off through the provider dashboard
	// tile into Jira, then exports.
	ModeFull Mode = "full"
	// ModeExportOnly still authenticates (the export rides on the SSO
	// session) but skips the dashboard tile and navigates straight to the
	// stored search URL.
	ModeExportOnly Mode = "export-only"
)

// ParseMode maps a CLI string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull:
		return ModeFull, nil
	case ModeExportOnly:
		return ModeExportOnly, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeFull, ModeExportOnly)
	}
}

// Session is the slice of the browser surface the runner manages. The
// concrete implementation lives in internal/browser; tests substitute
// scripted fakes.
type Session interface {
	interact.Actor
	ID() string
	Screenshot(ctx context.Context, path string) error
	Close(ctx context.Context) error
}

// SessionFactory acquires a live session. Injected so the pipeline is
// testable without a browser process.
type SessionFactory func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Session, error)

// Result is the outcome of one pipeline run.
type Result struct {
	Mode         Mode
	Success      bool
	ArtifactPath string
	Duration     time.Duration
	Err          error
}

// closeBudget bounds session teardown when the run context is already dead.
const closeBudget = 45 * time.Second

// Runner wires the state machines together.
type Runner struct {
	cfg          config.Config
	logger       *zap.Logger
	sessions     SessionFactory
	interactOpts []interact.Option
}

// Option adjusts runner construction.
type Option func(*Runner)

// WithInteractOptions overrides the interaction layer's internal timing.
func WithInteractOptions(opts ...interact.Option) Option {
	return func(r *Runner) {
		r.interactOpts = opts
	}
}

// NewRunner creates a runner using the given session factory.
func NewRunner(cfg config.Config, logger *zap.Logger, sessions SessionFactory, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		logger:   logger.Named("workflow"),
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the pipeline. The returned Result always carries the error
// that stopped the run; cleanup failures are logged, never propagated.
func (r *Runner) Run(ctx context.Context, mode Mode) Result {
	start := time.Now()
	result := Result{Mode: mode}

	finish := func(err error) Result {
		result.Duration = time.Since(start)
		result.Err = err
		result.Success = err == nil
		return result
	}

	r.logger.Info("Starting run", zap.String("mode", string(mode)))

	if err := jira.ValidateQuery(r.cfg.Jira.Query); err != nil {
		return finish(err)
	}
	if err := download.EnsureDir(r.cfg.Paths.DownloadDir); err != nil {
		return finish(fmt.Errorf("preparing download dir: %w", err))
	}
	if err := download.EnsureDir(r.cfg.Paths.LogsDir); err != nil {
		return finish(fmt.Errorf("preparing logs dir: %w", err))
	}

	sess, err := r.sessions(ctx, r.cfg, r.logger)
	if err != nil {
		return finish(fmt.Errorf("acquiring browser session: %w", err))
	}

	runErr := r.execute(ctx, sess, mode, &result)

	// Cleanup happens on every path, including cancellation. The run
	// context may already be dead, so teardown gets its own budget.
	r.cleanup(sess, runErr)

	return finish(runErr)
}

func (r *Runner) execute(ctx context.Context, sess Session, mode Mode, result *Result) error {
	prims := interact.New(sess, r.logger, r.interactOpts...)
	flow := auth.New(prims, r.cfg, r.logger)

	if err := flow.Login(ctx); err != nil {
		return fmt.Errorf("authentication: %w", err)
	}

	if mode == ModeFull {
		title, err := flow.HandoffToJira(ctx)
		if err != nil {
			return fmt.Errorf("sso hand-off: %w", err)
		}
		r.logger.Info("Landed in Jira", zap.String("title", title))
	}

	detector := download.NewDetector(r.cfg.Paths.DownloadDir, r.cfg.Timeouts.DownloadGrace, r.logger)
	exporter := jira.New(prims, detector, r.cfg, r.logger)

	artifact, err := exporter.Run(ctx)
	if err != nil {
		return err
	}

	result.ArtifactPath = artifact.Path
	return nil
}

// cleanup takes a best-effort screenshot on failure, purges aged artifacts,
// and releases the session. Errors here are logged and swallowed.
func (r *Runner) cleanup(sess Session, runErr error) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), closeBudget)
	defer cancel()

	if runErr != nil {
		path := filepath.Join(r.cfg.Paths.LogsDir,
			fmt.Sprintf("failure_%s.png", time.Now().Format("2006-01-02_15-04-05")))
		if err := sess.Screenshot(cleanupCtx, path); err != nil {
			r.logger.Warn("Diagnostic screenshot failed", zap.Error(err))
		}
	}

	if r.cfg.Purge.Enabled {
		maxAge := time.Duration(r.cfg.Purge.MaxAgeDays) * 24 * time.Hour
		n, err := download.PurgeOldFiles(r.cfg.Paths.DownloadDir, maxAge, r.cfg.Purge.Pattern, r.logger)
		if err != nil {
			r.logger.Warn("Artifact purge failed", zap.Error(err))
		} else if n > 0 {
			r.logger.Info("Purged old artifacts", zap.Int("count", n))
		}
	}

	if err := sess.Close(cleanupCtx); err != nil {
		r.logger.Warn("Session close failed", zap.Error(err))
	}
}

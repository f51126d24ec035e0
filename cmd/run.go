// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jirapull/internal/browser"
	"github.com/xkilldash9x/jirapull/internal/config"
	"github.com/xkilldash9x/jirapull/internal/observability"
	"github.com/xkilldash9x/jirapull/internal/workflow"
)

// liveSessionFactory launches a real browser. Split out so tests can run
// the command path against a scripted factory.
func liveSessionFactory(ctx context.Context, cfg config.Config, logger *zap.Logger) (workflow.Session, error) {
	return browser.NewSession(ctx, cfg, logger)
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Logs into the identity provider, hands off into Jira, and exports the stored query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWorkflow(cmd.Context(), cfg, workflow.ModeFull, liveSessionFactory)
		},
	}
}

// runWorkflow executes one pipeline run and folds the result into an error
// suitable for the root command's exit-code mapping.
func runWorkflow(ctx context.Context, cfg config.Config, mode workflow.Mode, factory workflow.SessionFactory) error {
	logger := observability.GetLogger()

	runner := workflow.NewRunner(cfg, logger, factory)
	result := runner.Run(ctx, mode)

	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) {
			logger.Warn("Run aborted", zap.String("mode", string(mode)))
			return fmt.Errorf("run aborted by user signal")
		}
		return result.Err
	}

	logger.Info("Run complete",
		zap.String("mode", string(mode)),
		zap.String("artifact", result.ArtifactPath),
		zap.Duration("duration", result.Duration))
	return nil
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

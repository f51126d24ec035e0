// -- cmd/export.go --
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/jirapull/internal/workflow"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Exports the stored query without the dashboard hand-off",
		Long: "Export authenticates with the identity provider (the export rides on the SSO\n" +
			"session) but navigates straight to the stored search URL instead of clicking\n" +
			"through the dashboard tile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runWorkflow(cmd.Context(), cfg, workflow.ModeExportOnly, liveSessionFactory)
		},
	}
}

func init() {
	rootCmd.AddCommand(newExportCmd())
}

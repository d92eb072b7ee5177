package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/app/bootstrap"
)

var (
	version    = "dev"
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "exchange",
	Short:         "Document exchange and request fulfillment node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the HTTP and gRPC APIs and publish local events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *bootstrap.Runtime) error {
			return rt.RunAPI(ctx)
		})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume inbound exchange messages for this company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *bootstrap.Runtime) error {
			return rt.RunWorker(ctx)
		})
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the API and the inbound consumer in one process",
	Long: `Runs the API servers, the outbox worker and the inbound consumer together.
Required when the memory store driver is used since state is not shared across processes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRuntime(cmd.Context(), func(ctx context.Context, rt *bootstrap.Runtime) error {
			return rt.RunAll(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := bootstrap.Migrate(cmd.Context(), configPath); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		cmd.Println("Migrations applied.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("exchange version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/default.yaml", "path to the YAML config file")
	rootCmd.AddCommand(apiCmd, workerCmd, allCmd, migrateCmd, versionCmd)
}

func withRuntime(ctx context.Context, run func(context.Context, *bootstrap.Runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap.NewRuntime(ctx, configPath)
	if err != nil {
		return fmt.Errorf("bootstrap runtime: %w", err)
	}
	return run(ctx, rt)
}

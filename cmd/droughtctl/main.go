package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/drought-index-service/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "droughtctl",
		Short: "Drought index service operations",
		Long: `droughtctl runs maintenance tasks against the drought index service:
schema migrations, offline forecasts from exported history, and one-off
collection runs for individual regions.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a config YAML file (default config/$ENV_NAME.yaml)")

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newForecastCmd())
	root.AddCommand(newCollectCmd())
	return root
}

// loadConfig reads --config when set, otherwise the environment-selected file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

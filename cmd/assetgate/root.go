package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetgate/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:           "assetgate",
		Short:         "Assetgate hands out per-user upload keys for a shared cloud asset account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newSeedCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
		newKeysCmd(cfg, &jsonOutput),
		newAssetsCmd(cfg, &jsonOutput),
		newHashPasswordCmd(),
	)

	return cmd
}

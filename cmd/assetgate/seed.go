package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetgate/internal/config"
	"assetgate/internal/gate"
	"assetgate/internal/seed"
	"assetgate/internal/store"
)

type seedResult struct {
	Key       string `json:"key"`
	Generated bool   `json:"generated"`
	Users     int    `json:"users"`
	Assets    int    `json:"assets"`
}

func newSeedCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Import keys from a YAML or JSONC file into the database",
		Long: `Import keys from a YAML or JSONC file. The file lists keys with their
user and asset ids; entries without a key get a generated one:

  keys:
    - key: <existing key>
      users: [1, 2]
      assets: [555]
    - users: [3]`,
		Args: requireExactlyArgs(1, "seed file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := seed.ReadFile(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				if *jsonOutput {
					return writeJSON(file)
				}
				return writePlain("%d keys parsed from %s\n", len(file.Keys), args[0])
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			keys := gate.New(st, gate.Config{Limit: cfg.Assets.KeyLimit})
			results, err := seed.Apply(cmd.Context(), keys, file)
			out := make([]seedResult, 0, len(results))
			for _, r := range results {
				out = append(out, seedResult{Key: r.Key, Generated: r.Generated, Users: r.Users, Assets: r.Assets})
			}
			if err != nil {
				return fmt.Errorf("seed applied %d of %d keys: %w", len(results), len(file.Keys), err)
			}

			if *jsonOutput {
				return writeJSON(out)
			}
			for _, r := range out {
				marker := ""
				if r.Generated {
					marker = " (generated)"
				}
				if err := writePlain("%s users=%d assets=%d%s\n", r.Key, r.Users, r.Assets, marker); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate the file without writing")
	return cmd
}

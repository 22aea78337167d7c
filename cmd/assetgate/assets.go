package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"assetgate/internal/api"
	"assetgate/internal/config"
)

type assetsCmdOptions struct {
	keyStdin bool
}

func newAssetsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &assetsCmdOptions{}
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Upload and fetch assets with an upload key (ASSETGATE_KEY)",
	}
	cmd.PersistentFlags().BoolVar(&opts.keyStdin, "key-stdin", false, "read the upload key from stdin")

	cmd.AddCommand(
		newAssetsListCmd(cfg, opts, jsonOutput),
		newAssetsUploadCmd(cfg, opts, jsonOutput),
		newAssetsUpdateCmd(cfg, opts, jsonOutput),
		newAssetsDownloadCmd(cfg, opts),
		newAssetsRevisionsCmd(cfg, opts, jsonOutput),
	)
	return cmd
}

func withKeyClient(cmd *cobra.Command, cfg *config.Config, opts *assetsCmdOptions, fn func(*api.Client) error) error {
	return withClient(cfg, func(client *api.Client) error {
		if opts.keyStdin {
			key, err := readSecretStdin(cmd.InOrStdin(), "upload key")
			if err != nil {
				return err
			}
			client.SetKey(key)
		}
		return fn(client)
	})
}

func writeAssetID(id int64, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(map[string]int64{"asset_id": id})
	}
	return writePlain("%d\n", id)
}

func newAssetsListCmd(cfg *config.Config, opts *assetsCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the assets the key may update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKeyClient(cmd, cfg, opts, func(client *api.Client) error {
				ids, err := client.ListAssets(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(ids)
				}
				for _, id := range ids {
					if err := writePlain("%d\n", id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newAssetsUploadCmd(cfg *config.Config, opts *assetsCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a model file as a new asset",
		Args:  requireExactlyArgs(1, "file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withKeyClient(cmd, cfg, opts, func(client *api.Client) error {
				id, err := client.CreateAsset(cmd.Context(), content)
				if err != nil {
					return err
				}
				return writeAssetID(id, *jsonOutput)
			})
		},
	}
}

func newAssetsUpdateCmd(cfg *config.Config, opts *assetsCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "update <asset-id> <file>",
		Short: "Replace the model of an asset the key holds",
		Args:  requireExactlyArgs(2, "asset id and file are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return withKeyClient(cmd, cfg, opts, func(client *api.Client) error {
				id, err := client.UpdateAsset(cmd.Context(), assetID, content)
				if err != nil {
					return err
				}
				return writeAssetID(id, *jsonOutput)
			})
		},
	}
}

func newAssetsDownloadCmd(cfg *config.Config, opts *assetsCmdOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <asset-id>",
		Short: "Download the current model of an asset the key holds",
		Args:  requireExactlyArgs(1, "asset id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return withKeyClient(cmd, cfg, opts, func(client *api.Client) error {
				if output == "" || output == "-" {
					return client.AssetContent(cmd.Context(), assetID, os.Stdout)
				}
				return downloadToFile(output, func(w io.Writer) error {
					return client.AssetContent(cmd.Context(), assetID, w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// downloadToFile writes to a temporary sibling and renames it into place
// only after a complete download.
func downloadToFile(path string, fetch func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".assetgate-download-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	buffered := bufio.NewWriter(tmp)
	if err = fetch(buffered); err != nil {
		return err
	}
	if err = buffered.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newAssetsRevisionsCmd(cfg *config.Config, opts *assetsCmdOptions, jsonOutput *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "revisions <asset-id>",
		Short: "List archived uploads of an asset the key holds",
		Args:  requireExactlyArgs(1, "asset id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return withKeyClient(cmd, cfg, opts, func(client *api.Client) error {
				revs, err := client.AssetRevisions(cmd.Context(), assetID, limit)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(revs)
				}
				return writeTable(revisionTable(revs))
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum revisions to list (server default when 0)")
	return cmd
}

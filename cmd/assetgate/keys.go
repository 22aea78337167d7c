package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"assetgate/internal/api"
	"assetgate/internal/config"
)

type keysCmdOptions struct {
	passwordStdin bool
}

func newKeysCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &keysCmdOptions{}
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Administer upload keys on a running server",
	}
	cmd.PersistentFlags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the admin password from stdin")

	cmd.AddCommand(
		newKeysListCmd(cfg, opts, jsonOutput),
		newKeysCreateCmd(cfg, opts, jsonOutput),
		newKeysUpdateCmd(cfg, opts, jsonOutput),
		newKeysDeleteCmd(cfg, opts, jsonOutput),
	)
	return cmd
}

func withAdminClient(cmd *cobra.Command, cfg *config.Config, opts *keysCmdOptions, fn func(*api.Client) error) error {
	return withClient(cfg, func(client *api.Client) error {
		if opts.passwordStdin {
			password, err := readSecretStdin(cmd.InOrStdin(), "admin password")
			if err != nil {
				return err
			}
			client.SetAdminPassword(password)
		}
		return fn(client)
	})
}

func newKeysListCmd(cfg *config.Config, opts *keysCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List keys with their users and assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminClient(cmd, cfg, opts, func(client *api.Client) error {
				keys, err := client.ListKeys(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(keys)
				}
				return writeTable(keyListTable(keys))
			})
		},
	}
}

func newKeysCreateCmd(cfg *config.Config, opts *keysCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an empty key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminClient(cmd, cfg, opts, func(client *api.Client) error {
				key, err := client.CreateKey(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]string{"key": key})
				}
				return writePlain("%s\n", key)
			})
		},
	}
}

type keyUpdateOptions struct {
	users       []int64
	assets      []int64
	clearUsers  bool
	clearAssets bool
}

func bindKeyUpdateFlags(fs *pflag.FlagSet, opts *keyUpdateOptions) {
	fs.Int64SliceVar(&opts.users, "users", nil, "replace the key's user ids (comma separated)")
	fs.Int64SliceVar(&opts.assets, "assets", nil, "replace the key's asset ids (comma separated)")
	fs.BoolVar(&opts.clearUsers, "clear-users", false, "remove every user from the key")
	fs.BoolVar(&opts.clearAssets, "clear-assets", false, "remove every asset from the key")
}

// buildKeyUpdateRequest sends only the fields named on the command line.
func buildKeyUpdateRequest(fs *pflag.FlagSet, opts *keyUpdateOptions) (api.KeyUpdateRequest, error) {
	req := api.KeyUpdateRequest{}
	if fs.Changed("users") && opts.clearUsers {
		return req, errors.New("--users and --clear-users are mutually exclusive")
	}
	if fs.Changed("assets") && opts.clearAssets {
		return req, errors.New("--assets and --clear-assets are mutually exclusive")
	}
	switch {
	case fs.Changed("users"):
		users := append([]int64{}, opts.users...)
		req.UserIDs = &users
	case opts.clearUsers:
		req.UserIDs = &[]int64{}
	}
	switch {
	case fs.Changed("assets"):
		assets := append([]int64{}, opts.assets...)
		req.AssetIDs = &assets
	case opts.clearAssets:
		req.AssetIDs = &[]int64{}
	}
	if req.UserIDs == nil && req.AssetIDs == nil {
		return req, errors.New("no fields to update")
	}
	return req, nil
}

func newKeysUpdateCmd(cfg *config.Config, opts *keysCmdOptions, jsonOutput *bool) *cobra.Command {
	updateOpts := &keyUpdateOptions{}
	cmd := &cobra.Command{
		Use:   "update <key>",
		Short: "Replace a key's users or assets",
		Args:  requireKeyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildKeyUpdateRequest(cmd.Flags(), updateOpts)
			if err != nil {
				return err
			}
			return withAdminClient(cmd, cfg, opts, func(client *api.Client) error {
				resp, err := client.UpdateKey(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("%s users=%s assets=%s\n", resp.Key, formatIDs(resp.UserIDs), formatIDs(resp.AssetIDs))
			})
		},
	}
	bindKeyUpdateFlags(cmd.Flags(), updateOpts)
	return cmd
}

func newKeysDeleteCmd(cfg *config.Config, opts *keysCmdOptions, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  requireKeyArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminClient(cmd, cfg, opts, func(client *api.Client) error {
				resp, err := client.DeleteKey(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("deleted %s\n", resp.Key)
			})
		},
	}
}

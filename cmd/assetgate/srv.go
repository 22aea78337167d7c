package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"assetgate/internal/auth"
	"assetgate/internal/blobstore"
	"assetgate/internal/config"
	"assetgate/internal/gate"
	"assetgate/internal/server"
	"assetgate/internal/store"
	"assetgate/internal/upstream"
	"assetgate/internal/workflow"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the assetgate API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := slog.Default().With("component", "server")
			if !cfg.AdminConfigured() {
				logger.Warn("no admin password configured; key administration is disabled")
			}

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			svc, keys, err := buildService(cmd.Context(), cfg, st, logger)
			if err != nil {
				return err
			}

			srv := server.New(svc, keys, server.Config{
				Addr: addr,
				Admin: auth.AdminCredential{
					Password:     cfg.AdminPassword,
					PasswordHash: cfg.AdminPasswordHash,
				},
				MaxRequestBytes: cfg.Assets.MaxRequestBytes,
				Logger:          logger,
			})
			return srv.ListenAndServe()
		},
	}
}

func buildService(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*workflow.Service, *gate.Gate, error) {
	keys := gate.New(st, gate.Config{
		Limit:  cfg.Assets.KeyLimit,
		Logger: logger.With("component", "gate"),
	})

	upstreamLogger := logger.With("component", "upstream")
	client, err := upstream.NewClient(upstream.Config{
		APIKey:     cfg.Upstream.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Upstream.HTTPTimeout.Duration},
		Logger:     upstreamLogger,
	})
	if err != nil {
		return nil, nil, err
	}
	poller := upstream.NewPoller(client, upstream.PollerConfig{
		Interval: cfg.Assets.PollInterval.Duration,
		Timeout:  pollTimeout(cfg.Assets.PollTimeout.Duration),
		Logger:   upstreamLogger,
	})
	cloud := upstream.NewCloud(client, poller, cfg.Upstream.BaseURL)

	cache := workflow.NewAssetCache()
	if err := cache.Seed(ctx, cloud, cfg.Upstream.UploaderUserID); err != nil {
		return nil, nil, fmt.Errorf("load uploader inventory: %w", err)
	}
	logger.Info("uploader inventory loaded", "assets", cache.Len())

	archiveRoot := cfg.ArchiveRoot()
	blobs, err := blobstore.NewLocalCAS(archiveRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("open upload archive %s: %w", archiveRoot, err)
	}

	svc := workflow.New(cloud, keys, cache, workflow.Config{
		UploaderUserID: cfg.Upstream.UploaderUserID,
		UniverseID:     cfg.Upstream.UniverseID,
		Archive:        workflow.NewArchive(blobs, st, nil, logger.With("component", "archive")),
		Logger:         logger.With("component", "workflow"),
	})
	return svc, keys, nil
}

// pollTimeout maps the configured value onto the poller: zero in config
// means wait forever.
func pollTimeout(configured time.Duration) time.Duration {
	if configured == 0 {
		return -1
	}
	return configured
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"assetgate/internal/api"
	"assetgate/internal/config"
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	if cfg.AdminPassword != "" {
		client.SetAdminPassword(cfg.AdminPassword)
	}
	return fn(client)
}

// readSecretStdin reads one trimmed secret from stdin.
func readSecretStdin(r io.Reader, what string) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s on stdin is empty", what)
	}
	return secret, nil
}

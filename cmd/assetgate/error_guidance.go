package main

import (
	"context"
	"errors"
	"net"

	"assetgate/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify ASSETGATE_KEY for asset commands or ASSETGATE_ADMIN_PASSWORD for keys commands.")
		case "resource_exhausted":
			lines = append(lines, "hint: too many failed attempts or concurrent uploads; retry shortly.")
		case "quota_exceeded":
			lines = append(lines, "hint: the key holds its maximum number of assets; update an existing asset instead.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify ASSETGATE_API_URL points to an assetgate server.")
		}
		if apiErr.Status >= 500 && apiErr.ErrorCode < 5000 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; uploads wait for the asset service, so increase ASSETGATE_HTTP_TIMEOUT if needed.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an assetgate server is running at ASSETGATE_API_URL.",
			"hint: start it with: assetgate srv",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

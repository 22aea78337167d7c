package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"assetgate/internal/clock"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// Operation is the service's handle for asynchronous work. Response is set
// once Done is true and the work succeeded.
type Operation[T any] struct {
	Path        string          `json:"path"`
	OperationID string          `json:"operationId,omitempty"`
	Done        bool            `json:"done"`
	Response    *T              `json:"response,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// PollerConfig configures a Poller. Zero values select the defaults; a
// negative Timeout disables the deadline.
type PollerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Poller re-fetches operation handles until they complete.
type Poller struct {
	client   *Client
	interval time.Duration
	timeout  time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func NewPoller(client *Client, cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultPollTimeout
	case timeout < 0:
		timeout = 0
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{client: client, interval: interval, timeout: timeout, clock: clk, logger: logger}
}

// Poll fetches basePath+op.Path until the operation reports done and returns
// its response. Fetch failures are returned as-is without retry. basePath must
// end with "/".
func Poll[T any](ctx context.Context, p *Poller, basePath string, op Operation[T]) (T, error) {
	var zero T
	mustEndWithSeparator(basePath)
	if strings.TrimSpace(op.Path) == "" {
		return zero, fmt.Errorf("upstream: operation handle has no path")
	}

	target := basePath + strings.TrimPrefix(op.Path, "/")
	var deadline time.Time
	if p.timeout > 0 {
		deadline = p.clock.Now().Add(p.timeout)
	}

	for attempt := 1; ; attempt++ {
		current, err := DoJSON[Operation[T]](ctx, p.client, Request{Method: http.MethodGet, URL: target})
		if err != nil {
			return zero, err
		}
		if current.Done {
			if current.Path == "" {
				current.Path = op.Path
			}
			return current.result()
		}
		if !deadline.IsZero() && !p.clock.Now().Before(deadline) {
			return zero, fmt.Errorf("%w: %s still running after %s", ErrPollTimeout, op.Path, p.timeout)
		}
		p.logger.Debug("operation pending", "path", op.Path, "attempt", attempt)

		select {
		case <-p.clock.After(p.interval):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (op Operation[T]) result() (T, error) {
	var zero T
	if trimmed := bytes.TrimSpace(op.Error); len(trimmed) > 0 && !isNull(trimmed) {
		message, ok := NormalizeJSON(trimmed)
		if !ok || message == "" {
			message = "operation failed"
		}
		return zero, &OperationError{Path: op.Path, StatusCode: http.StatusOK, Message: message}
	}
	if op.Response == nil {
		return zero, &OperationError{Path: op.Path, StatusCode: http.StatusOK, Message: "operation completed without a response"}
	}
	return *op.Response, nil
}

package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"assetgate/internal/auth"
	"assetgate/internal/clock"
	"assetgate/internal/gate"
	"assetgate/internal/workflow"
)

const (
	allowRemoteEnvKey = "ASSETGATE_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 60 * time.Second

	// DefaultMaxRequestBytes caps raw upload bodies.
	DefaultMaxRequestBytes = 4 << 20

	defaultUploadConcurrency = 8
	defaultAuthMaxFailures   = 10
	defaultAuthWindow        = 5 * time.Minute
	defaultAuthBlock         = 5 * time.Minute
)

// Config configures a Server. Zero values select the defaults.
type Config struct {
	Addr              string
	Admin             auth.AdminCredential
	MaxRequestBytes   int64
	UploadConcurrency int

	// Failed key or admin-password checks per client address before the
	// address is blocked for AuthBlock. A negative AuthMaxFailures disables
	// the limiter.
	AuthMaxFailures int
	AuthWindow      time.Duration
	AuthBlock       time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server wraps HTTP handlers for the assetgate API.
type Server struct {
	addr            string
	workflow        *workflow.Service
	gate            *gate.Gate
	admin           auth.AdminCredential
	maxRequestBytes int64
	uploadLimiter   chan struct{}
	authLimiter     *authFailureLimiter
	clock           clock.Clock
	logger          *slog.Logger
}

// New creates a new server instance.
func New(svc *workflow.Service, keys *gate.Gate, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	maxBytes := cfg.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}
	concurrency := cfg.UploadConcurrency
	if concurrency <= 0 {
		concurrency = defaultUploadConcurrency
	}

	var limiter *authFailureLimiter
	if cfg.AuthMaxFailures >= 0 {
		limiter = newAuthFailureLimiter(
			valueOr(cfg.AuthMaxFailures, defaultAuthMaxFailures),
			valueOr(cfg.AuthWindow, defaultAuthWindow),
			valueOr(cfg.AuthBlock, defaultAuthBlock),
		)
	}

	return &Server{
		addr:            cfg.Addr,
		workflow:        svc,
		gate:            keys,
		admin:           cfg.Admin,
		maxRequestBytes: maxBytes,
		uploadLimiter:   make(chan struct{}, concurrency),
		authLimiter:     limiter,
		clock:           clk,
		logger:          logger,
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.routes())
}

// ListenAndServe starts the HTTP server. There is no write timeout: uploads
// are bounded by the poll timeout instead.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr, "admin_configured", s.admin.Configured())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		s.writeErrorReq(w, r, http.StatusTooManyRequests, tooManyRequests(fmt.Errorf("too many concurrent %s requests", name)))
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func valueOr[T int | time.Duration](value, def T) T {
	if value <= 0 {
		return def
	}
	return value
}

package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"assetgate/internal/workflow"
)

const bearerPrefix = "bearer "

// bearerToken returns the credential of an "Authorization: Bearer" header,
// or "" when there is none.
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// allowAuthAttempt writes 429 and returns false when the client address is
// blocked for repeated authentication failures.
func (s *Server) allowAuthAttempt(w http.ResponseWriter, r *http.Request) bool {
	if s.authLimiter.Allow(requestClientIP(r), s.clock.Now()) {
		return true
	}
	s.writeErrorReq(w, r, http.StatusTooManyRequests, tooManyRequests(fmt.Errorf("too many failed authentication attempts; retry later")))
	return false
}

func (s *Server) registerAuthFailure(r *http.Request) {
	s.authLimiter.RegisterFailure(requestClientIP(r), s.clock.Now())
}

// withAdmin guards the key administration routes with the admin password.
// An unconfigured password rejects every request.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("missing admin password")))
			return
		}
		if !s.allowAuthAttempt(w, r) {
			return
		}
		if !s.admin.Match(token) {
			s.registerAuthFailure(r)
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("invalid admin password")))
			return
		}
		s.authLimiter.Reset(requestClientIP(r))
		next(w, r)
	}
}

// writeWorkflowError answers a failed workflow call and counts rejected keys
// against the client address.
func (s *Server) writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, workflow.ErrInvalidKey) {
		s.registerAuthFailure(r)
	}
	s.writeServiceError(w, r, workflowFailure(err))
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}

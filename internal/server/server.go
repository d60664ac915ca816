// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 didpoop Contributors

// Package server wires the GraphQL executor, session validation, and
// the per-request loader bundle into an HTTP server.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/didpoop/didpoop/internal/auth"
	"github.com/didpoop/didpoop/internal/errutil"
	"github.com/didpoop/didpoop/internal/graph"
	"github.com/didpoop/didpoop/internal/loader"
	"github.com/didpoop/didpoop/internal/model"
	"github.com/didpoop/didpoop/internal/observability"
)

// Options configures a Server. Auth, Store, and Executor are required;
// Metrics and Logger are optional.
type Options struct {
	Addr       string
	Version    string
	CookieName string
	Auth       *auth.Service
	Store      graph.Storage
	Executor   *graph.Executor
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Server is the public HTTP surface: POST /api/graphql, GET /status,
// GET /.
type Server struct {
	opts       Options
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// New creates a Server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, logger: logger}
}

// Handler builds the route table wrapped in the request-logging
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/graphql", s.handleGraphQL)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return s.logRequests(mux)
}

// Start begins serving. It returns an error channel that receives any
// serve failure and closes on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("LISTEN_FAILED").With("addr", s.opts.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("server started", "addr", listener.Addr().String(), "version", s.opts.Version)
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_server").Wrap(err)
		}
	}
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// handleGraphQL is the single GraphQL endpoint. The session cookie, when
// present and valid, resolves to the request identity; any validation
// miss or failure degrades to an anonymous request. A fresh loader
// bundle is built per request so nothing is cached across requests.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graph.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"errors":[{"message":"invalid request body"}]}`, http.StatusBadRequest)
		return
	}

	rc := graph.NewRequestContext(s.identity(r), s.loaders())

	resp := s.opts.Executor.Execute(r.Context(), rc, req)

	for _, cookie := range rc.Cookies() {
		w.Header().Add("Set-Cookie", cookie)
	}

	if s.opts.Metrics != nil {
		status := "ok"
		if len(resp.Errors) > 0 {
			status = "error"
		}
		s.opts.Metrics.RecordRequest(operationName(req), status)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		errutil.LogError(s.logger, "failed to encode response", err)
	}
}

// identity resolves the session cookie to a user, or nil.
func (s *Server) identity(r *http.Request) *model.User {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		return nil
	}
	user, err := s.opts.Auth.Validate(r.Context(), cookie.Value)
	if err != nil {
		// A storage failure here must not fail the whole request;
		// the caller just proceeds anonymously.
		errutil.LogError(s.logger, "session validation failed", err)
		return nil
	}
	if user != nil {
		s.logger.Info("found user for request", "user", user.Email, "user_id", user.ID)
	}
	return user
}

// loaders builds a fresh bundle, metered when metrics are wired.
func (s *Server) loaders() *loader.Loaders {
	if s.opts.Metrics != nil {
		return loader.NewLoadersObserved(s.opts.Store, s.opts.Metrics.BatchObserver)
	}
	return loader.NewLoaders(s.opts.Store)
}

func operationName(req graph.Request) string {
	if req.OperationName != "" {
		return req.OperationName
	}
	return "anonymous"
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // status write error is acceptable
	json.NewEncoder(w).Encode(map[string]string{
		"version": s.opts.Version,
		"ok":      "ok",
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	//nolint:errcheck // index write error is acceptable
	w.Write([]byte("hello"))
}

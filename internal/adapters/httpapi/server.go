// Package httpapi exposes snapshots, capability checks and device commands
// over a small local HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bnema/octoflex/internal/adapters/logging"
	"github.com/bnema/octoflex/internal/adapters/render/report"
	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	shutdownTimeout   = 10 * time.Second
	keepaliveInterval = 30 * time.Second
	maxCommandBody    = 4 << 10
)

type Server struct {
	registry *application.Registry
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logging.Nop(logger).Named("http")
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = gatherer
	}
}

func NewServer(registry *application.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		gatherer: prometheus.DefaultGatherer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/refresh", s.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{account}/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/devices", s.handleDevices).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/devices/{device}/capabilities/{capability}", s.handleCapability).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/devices/{device}/commands/{kind}", s.handleCommand).Methods(http.MethodPost)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"accounts": len(s.registry.Accounts()),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	type accountDoc struct {
		Account   string     `json:"account"`
		Seq       uint64     `json:"seq"`
		FetchedAt *time.Time `json:"fetched_at,omitempty"`
	}

	accounts := s.registry.Accounts()
	docs := make([]accountDoc, 0, len(accounts))
	for _, account := range accounts {
		doc := accountDoc{Account: account.String()}
		if snapshot, err := s.registry.LatestSnapshot(account); err == nil {
			fetchedAt := snapshot.FetchedAt
			doc.Seq = snapshot.Seq
			doc.FetchedAt = &fetchedAt
		}
		docs = append(docs, doc)
	}

	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	overview, err := session.Overview()
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report.FromOverview(overview))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	snapshot, fetched, err := session.RequestRefresh(r.Context())
	if snapshot == nil {
		if err == nil {
			err = domain.ErrNoSnapshot
		}
		s.writeError(w, err)
		return
	}

	body := map[string]any{"fetched": fetched, "seq": snapshot.Seq}
	if err != nil {
		body["error"] = userMessage(err)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	states, err := session.DeviceStates()
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report.FromDeviceStates(states))
}

func (s *Server) handleCapability(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	capability, err := domain.ParseCapability(vars["capability"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":  vars["device"],
		"capability": capability,
		"available":  session.CapabilityAvailable(vars["device"], capability),
	})
}

type commandRequest struct {
	TargetPercentage int    `json:"target_percentage"`
	TargetTime       string `json:"target_time"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	kind, err := domain.ParseCommandKind(vars["kind"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	var body commandRequest
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("decode command body: %v", err)})
			return
		}
	}

	result, err := session.IssueCommand(r.Context(), kind, domain.CommandParams{
		DeviceID:         vars["device"],
		TargetPercentage: body.TargetPercentage,
		TargetTime:       body.TargetTime,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, report.FromCommandResult(result))
}

// handleEvents streams a server-sent event each time a newer snapshot is published.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := s.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	updates, unsubscribe := session.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var lastSeq uint64
	send := func() bool {
		snapshot, err := session.LatestSnapshot()
		if err != nil || snapshot.Seq <= lastSeq {
			return true
		}
		lastSeq = snapshot.Seq
		payload, _ := json.Marshal(map[string]any{
			"account":    snapshot.AccountNumber,
			"seq":        snapshot.Seq,
			"fetched_at": snapshot.FetchedAt,
		})
		if _, err := fmt.Fprintf(w, "event: snapshot\nid: %d\ndata: %s\n\n", snapshot.Seq, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, open := <-updates:
			if !open || !send() {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*application.Session, bool) {
	account := domain.AccountNumber(mux.Vars(r)["account"])
	session, err := s.registry.Session(account)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}

	return session, true
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

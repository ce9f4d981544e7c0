// Package server exposes a speaker.Controller over a localhost HTTP JSON
// API and streams the activity log over a websocket.
//
// Routes:
//
//	GET    /api/speakers             enrolled speakers
//	POST   /api/register             {"path": ..., "user_id": ...}
//	POST   /api/identify             {"path": ...}
//	POST   /api/record/register      {"user_id": ...}
//	POST   /api/record/identify
//	POST   /api/auto-register
//	DELETE /api/speakers/{id}
//	GET    /api/threshold
//	PUT    /api/threshold            {"value": 0.8}
//	GET    /api/history?limit=N
//	DELETE /api/history
//	GET    /api/log
//	DELETE /api/log
//	POST   /api/ops/{name}           {"args": [...]}
//	GET    /ws                       live activity lines
//
// Requests other than GET, HEAD and OPTIONS from a cross-origin browser
// context are rejected with 403, and request bodies must be
// application/json.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/speakerid/pkg/audio/capture"
	"github.com/haivivi/speakerid/pkg/audio/normalize"
	"github.com/haivivi/speakerid/pkg/speaker"
)

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:8765"

// Options configures a Server.
type Options struct {
	// OnThreshold is called after a successful threshold change, for
	// example to persist it. Its error is logged, not returned.
	OnThreshold func(float64) error

	// Logger receives diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	ctrl        *speaker.Controller
	mux         *http.ServeMux
	handler     http.Handler
	upgrader    websocket.Upgrader
	onThreshold func(float64) error
	logger      *slog.Logger
}

// New creates a Server for ctrl.
func New(ctrl *speaker.Controller, opts Options) *Server {
	s := &Server{
		ctrl:        ctrl,
		mux:         http.NewServeMux(),
		onThreshold: opts.OnThreshold,
		logger:      opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: sameHost,
		},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.setupRoutes()

	cop := http.NewCrossOriginProtection()
	cop.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "cross-origin request rejected"})
	}))
	s.handler = cop.Handler(s.mux)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/speakers", s.handleSpeakers)
	s.mux.HandleFunc("DELETE /api/speakers/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/identify", s.handleIdentify)
	s.mux.HandleFunc("POST /api/record/register", s.handleRecordRegister)
	s.mux.HandleFunc("POST /api/record/identify", s.handleRecordIdentify)
	s.mux.HandleFunc("POST /api/auto-register", s.handleAutoRegister)
	s.mux.HandleFunc("GET /api/threshold", s.handleGetThreshold)
	s.mux.HandleFunc("PUT /api/threshold", s.handleSetThreshold)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	s.mux.HandleFunc("GET /api/log", s.handleLog)
	s.mux.HandleFunc("DELETE /api/log", s.handleClearLog)
	s.mux.HandleFunc("POST /api/ops/{name}", s.handleOperation)
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// errorBody is the JSON body of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
}

func writeBodyError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errMediaType) {
		status = http.StatusUnsupportedMediaType
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusOf maps workflow errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, speaker.ErrUsage),
		errors.Is(err, speaker.ErrInvalidUserID),
		errors.Is(err, speaker.ErrThresholdRange),
		errors.Is(err, normalize.ErrDecode),
		errors.Is(err, normalize.ErrTooShort):
		return http.StatusBadRequest
	case errors.Is(err, speaker.ErrNoTemplates):
		return http.StatusConflict
	case errors.Is(err, speaker.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, capture.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errMediaType rejects request bodies that are not JSON.
var errMediaType = errors.New("content type must be application/json")

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return errMediaType
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleSpeakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Speakers(r.Context()))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.DeleteSpeaker(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if res.NotFound() {
		writeJSON(w, http.StatusNotFound, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type registerRequest struct {
	Path   string `json:"path"`
	UserID string `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	enr, err := s.ctrl.Register(r.Context(), req.Path, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enr)
}

type identifyRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	res, err := s.ctrl.Identify(r.Context(), req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	enr, err := s.ctrl.RecordAndRegister(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enr)
}

func (s *Server) handleRecordIdentify(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.RecordAndIdentify(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAutoRegister(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ctrl.AutoRegisterDirectory(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type thresholdBody struct {
	Value float64 `json:"value"`
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, thresholdBody{Value: s.ctrl.Threshold()})
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdBody
	if err := decodeBody(w, r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if err := s.ctrl.SetThreshold(req.Value); err != nil {
		writeError(w, err)
		return
	}
	if s.onThreshold != nil {
		if err := s.onThreshold(req.Value); err != nil {
			s.logger.Warn("persist threshold", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, thresholdBody{Value: s.ctrl.Threshold()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid limit %q", v)})
			return
		}
		limit = n
	}
	entries, err := s.ctrl.History(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	n, err := s.ctrl.ClearHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Activity().Lines())
}

func (s *Server) handleClearLog(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.ClearLog()
	writeJSON(w, http.StatusOK, s.ctrl.Activity().Lines())
}

type operationRequest struct {
	Args []string `json:"args"`
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	op, found := s.ctrl.Operation(r.PathValue("name"))
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("unknown operation %q", r.PathValue("name"))})
		return
	}
	var req operationRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeBodyError(w, err)
			return
		}
	}
	res := op.Execute(r.Context(), req.Args)
	status := http.StatusOK
	if !res.OK {
		status = statusOf(res.Err)
	}
	writeJSON(w, status, res)
}

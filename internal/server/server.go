package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/raysh454/qssage/internal/app"
	"github.com/raysh454/qssage/internal/dispatch"
	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/notify"
	"github.com/raysh454/qssage/internal/store"
	"github.com/raysh454/qssage/internal/utils"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Server is the HTTP + WebSocket API surface for QSSAGE.
type Server struct {
	cfg      app.ServerConfig
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	limiter  *clientLimiter
	logger   logging.Logger
}

// NewServer builds the router around an already wired Application.
func NewServer(a *app.Application, logger logging.Logger) (*Server, error) {
	if a == nil || a.Orchestrator == nil {
		return nil, errors.New("server: application is not initialised")
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:     a.Config.Server,
		app:     a,
		router:  chi.NewRouter(),
		limiter: newClientLimiter(a.Config.Server.ScanRate, a.Config.Server.ScanBurst),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := a.Config.Server.AllowOrigin
				return origin == "" || origin == "*" || r.Header.Get("Origin") == origin
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/report", s.optionsHandler("GET, POST"))
	r.Options("/report/{id}", s.optionsHandler("DELETE"))
	r.Options("/dispatch/manual", s.optionsHandler("POST"))
	r.Options("/dispatch/backup", s.optionsHandler("POST"))

	r.Get("/", s.handleRoot)

	// Scanning
	r.Post("/scan", s.handleScan)
	r.Get("/ws/scan", s.handleScanWS)

	// Reports
	r.Post("/report", s.handleCreateReport)
	r.Get("/report", s.handleListReports)
	r.Delete("/report/{id}", s.handleDeleteReport)

	// Dispatch
	r.Post("/dispatch/manual", s.handleDispatchManual)
	r.Post("/dispatch/backup", s.handleDispatchBackup)

	r.Method(http.MethodGet, "/metrics", s.app.Metrics.Handler())
	r.Get("/swagger/*", swaggerHandler())
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := s.cfg.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Info("http_request", fields...)
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// --- HTTP handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("QSSAGE backend is running\n"))
}

// Scanning

// handleScan godoc
// @Summary Scan a URL decoded from a QR code
// @Tags scan
// @Accept json
// @Produce json
// @Param request body app.ScanRequest true "URL to scan"
// @Success 200 {object} app.ScanResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scan [post]
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req app.ScanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !s.limiter.Allow(clientIP(r)) {
		s.logger.Warn("scan rate limited", logging.F("client", clientIP(r)))
		writeError(w, http.StatusTooManyRequests, "too many scan requests")
		return
	}

	res, err := s.app.Orchestrator.Scan(r.Context(), req, nil)
	if err != nil {
		if errors.Is(err, app.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, "url is not valid")
			return
		}
		s.logger.Error("scan failed", logging.F("url", req.URL), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error during analysis")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleScanWS streams each state transition of one scan, then the result.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	req := app.ScanRequest{
		URL:      r.URL.Query().Get("url"),
		Location: r.URL.Query().Get("location"),
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "missing url query parameter")
		return
	}
	if !s.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many scan requests")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var scanID string
	res, err := s.app.Orchestrator.Scan(ctx, req, func(id string, st app.State) {
		scanID = id
		if err := conn.WriteJSON(ScanEvent{Type: "state", ScanID: id, State: st}); err != nil {
			// Client went away; stop the scan.
			cancel()
		}
	})
	if err != nil {
		msg := "internal error during analysis"
		if errors.Is(err, app.ErrInvalidURL) {
			msg = "url is not valid"
		}
		_ = conn.WriteJSON(ScanEvent{Type: "error", ScanID: scanID, Error: msg})
	} else {
		_ = conn.WriteJSON(ScanEvent{Type: "result", ScanID: res.ScanID, Result: res})
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Reports

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var body ReportRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	u, err := utils.Normalize(body.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "url is not valid")
		return
	}

	rec := &store.ReportRecord{
		URL:    u.String(),
		Note:   strings.TrimSpace(body.Note),
		Source: store.SourceManual,
	}
	if loc := body.Location; loc != nil {
		lat, lng := loc.Lat, loc.Lng
		rec.Latitude, rec.Longitude = &lat, &lng
		rec.Location = strconv.FormatFloat(lat, 'f', 6, 64) + "," + strconv.FormatFloat(lng, 'f', 6, 64)
	}

	stored, err := s.app.Store.Insert(r.Context(), rec)
	if err != nil {
		s.logger.Error("storing report", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to store report")
		return
	}
	s.app.Metrics.ReportStored(store.SourceManual)
	s.logger.Info("report stored", logging.F("report_id", stored.ID), logging.F("url", stored.URL))
	s.notifyReport(r.Context(), stored)
	writeJSON(w, http.StatusCreated, stored)
}

// notifyReport posts the webhook in the background; failures are only logged.
func (s *Server) notifyReport(ctx context.Context, rec *store.ReportRecord) {
	wh := s.app.Webhook
	if !wh.Enabled() {
		return
	}
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	s.app.Orchestrator.Go(func() {
		defer cancel()
		if err := wh.NotifyReport(bg, rec); err != nil {
			s.app.Metrics.SideEffectFailed("webhook")
			s.logger.Warn("report webhook failed", logging.F("report_id", rec.ID), logging.Err(err))
		}
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOptions{}
	q := r.URL.Query()
	if v := q.Get("pending"); v != "" {
		pending, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "pending must be a boolean")
			return
		}
		opts.Pending = pending
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}

	reports, err := s.app.Store.List(r.Context(), opts)
	if err != nil {
		s.logger.Warn("listing reports", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []*store.ReportRecord{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.app.Store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	case err != nil:
		s.logger.Warn("deleting report", logging.F("report_id", id), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to delete report")
	default:
		s.logger.Info("report deleted", logging.F("report_id", id))
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

// Dispatch

func (s *Server) handleDispatchManual(w http.ResponseWriter, r *http.Request) {
	var body DispatchRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(body.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no reports selected")
		return
	}

	sent, err := s.app.Dispatcher.Dispatch(r.Context(), body.IDs)
	switch {
	case errors.Is(err, dispatch.ErrNoReports):
		writeError(w, http.StatusNotFound, "none of the selected reports exist")
	case errors.Is(err, notify.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "mail is not configured")
	case err != nil && sent == 0:
		s.logger.Error("dispatch failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "failed to send mail")
	case err != nil:
		s.logger.Error("dispatch bookkeeping failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("mail sent for %d reports but marking them failed", sent))
	default:
		writeJSON(w, http.StatusOK, DispatchResponse{OK: true, Sent: sent})
	}
}

func (s *Server) handleDispatchBackup(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.Dispatcher.Backup(r.Context(), s.cfg.BackupDir)
	switch {
	case errors.Is(err, dispatch.ErrNoReports):
		writeJSON(w, http.StatusOK, dispatch.BackupResult{})
	case err != nil:
		s.logger.Error("backup failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "backup failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

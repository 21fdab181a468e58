package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/secboard/docs/swagger" // registers the swag spec
	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/model"
	"github.com/raysh454/secboard/internal/results"
	"github.com/raysh454/secboard/internal/scan"
)

var ErrNoVerifier = errors.New("server requires a token verifier")

// Server is the HTTP + WebSocket API surface of the dashboard.
type Server struct {
	cfg      Config
	sessions *app.Sessions
	verifier *identity.Verifier
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server over an existing session registry.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Verifier == nil {
		return nil, ErrNoVerifier
	}
	if cfg.Sessions == nil {
		return nil, errors.New("server requires a session registry")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:      cfg,
		sessions: cfg.Sessions,
		verifier: cfg.Verifier,
		router:   r,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/scan", s.handleGetState)
		r.Post("/scan", s.handleStartScan)
		r.Delete("/scan", s.handleCancelScan)
		r.Get("/scan/last", s.handleLastScan)
		r.Get("/scan/summary", s.handleSummary)
		r.Get("/scan/modules/{module}", s.handleModule)
		r.Get("/scan/modules/"+model.ModuleQuantum+"/overview", s.handleQuantumOverview)
		r.Get("/dashboard-summary", s.handleDashboardSummary)
	})

	// The browser WebSocket API cannot set headers; the token rides in the query.
	r.Get("/ws/scan", s.handleScanWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Preflight never carries credentials, so it is answered before auth.
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})

	s.router.ServeHTTP(w, r)
}

// Close stops every scan session.
func (s *Server) Close() {
	if err := s.sessions.Close(); err != nil {
		s.logger.Warn("closing sessions", logging.Field{Key: "error", Value: err.Error()})
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- Auth ---

type coordinatorKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, status, err := s.coordinatorFor(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, status, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), coordinatorKey{}, c)))
	})
}

func (s *Server) coordinatorFor(ctx context.Context, token string) (*scan.Coordinator, int, error) {
	id, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn("rejected token", logging.Field{Key: "error", Value: err.Error()})
		if errors.Is(err, identity.ErrNoToken) {
			return nil, http.StatusUnauthorized, errors.New("missing bearer token")
		}
		return nil, http.StatusUnauthorized, errors.New("invalid token")
	}
	c, err := s.sessions.For(ctx, id)
	if err != nil {
		s.logger.Warn("opening scan session", logging.Field{Key: "error", Value: err.Error()})
		return nil, http.StatusServiceUnavailable, errors.New("scan sessions unavailable")
	}
	return c, 0, nil
}

func coordinatorFrom(r *http.Request) *scan.Coordinator {
	c, _ := r.Context().Value(coordinatorKey{}).(*scan.Coordinator)
	return c
}

// --- Scan handlers ---

// handleGetState returns the coordinator state.
//
// @Summary Current scan state
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} scan.State
// @Failure 401 {object} ErrorResponse
// @Router /api/scan [get]
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coordinatorFrom(r).State())
}

// handleStartScan starts a new scan for the caller's domain.
//
// @Summary Start a scan
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 202 {object} StartScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /api/scan [post]
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(r)
	id, err := c.StartNewScan(r.Context())
	if err != nil {
		s.logger.Warn("starting scan", logging.Field{Key: "error", Value: err.Error()})
		switch {
		case errors.Is(err, scan.ErrInvalidDomain):
			writeError(w, http.StatusBadRequest, scan.MsgInvalidDomain)
		case errors.Is(err, scan.ErrScanStart):
			msg := c.State().ErrorMessage
			if msg == "" {
				msg = scan.MsgStartFallback
			}
			writeError(w, http.StatusBadGateway, msg)
		case errors.Is(err, scan.ErrScanCanceled):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, scan.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.logger.Info("started scan", logging.Field{Key: "session_id", Value: id})
	writeJSON(w, http.StatusAccepted, StartScanResponse{SessionID: id})
}

// @Summary Cancel the running scan
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CancelScanResponse
// @Router /api/scan [delete]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	canceled := coordinatorFrom(r).Cancel()
	s.logger.Info("cancel scan", logging.Field{Key: "canceled", Value: canceled})
	writeJSON(w, http.StatusOK, CancelScanResponse{Canceled: canceled})
}

// @Summary Last completed scan
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} results.Info
// @Success 204
// @Router /api/scan/last [get]
func (s *Server) handleLastScan(w http.ResponseWriter, r *http.Request) {
	info := coordinatorFrom(r).GetLastScanInfo()
	if info == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// @Summary Module pass/fail summary and grade
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} results.Summary
// @Failure 404 {object} ErrorResponse
// @Router /api/scan/summary [get]
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	result := coordinatorFrom(r).State().Result
	if result == nil {
		writeError(w, http.StatusNotFound, "no scan result")
		return
	}
	writeJSON(w, http.StatusOK, results.Summarize(result))
}

// @Summary One module of the current result
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Param module path string true "module name, e.g. dnsSecurity or spf"
// @Success 200 {object} ModuleResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/scan/modules/{module} [get]
func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	c := coordinatorFrom(r)
	name := model.CanonicalModule(chi.URLParam(r, "module"))
	data := c.GetModuleData(name)
	if data == nil {
		writeError(w, http.StatusNotFound, "module not found")
		return
	}
	writeJSON(w, http.StatusOK, ModuleResponse{
		Module:    name,
		Label:     results.ModuleLabel(name),
		HasErrors: c.HasModuleErrors(name),
		Severity:  results.SeverityCounts(data),
		Data:      data,
	})
}

// @Summary Quantum exposure overview of the main domain
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} results.QuantumOverview
// @Failure 404 {object} ErrorResponse
// @Router /api/scan/modules/quantumSecurity/overview [get]
func (s *Server) handleQuantumOverview(w http.ResponseWriter, r *http.Request) {
	overview := results.Quantum(coordinatorFrom(r).GetModuleData(model.ModuleQuantum))
	if overview == nil {
		writeError(w, http.StatusNotFound, "no quantum exposure data")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// @Summary Upstream dashboard summary
// @Tags scan
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object
// @Failure 502 {object} ErrorResponse
// @Router /api/dashboard-summary [get]
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Summary == nil {
		writeError(w, http.StatusNotFound, "dashboard summary not configured")
		return
	}
	raw, err := s.cfg.Summary.DashboardSummary(r.Context())
	if err != nil {
		s.logger.Warn("fetching dashboard summary", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.sessions.Len()})
}

// --- WebSockets ---

// handleScanWS streams the caller's coordinator events. The first frame is a
// state snapshot. Closing the socket does not stop the scan.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	c, status, err := s.coordinatorFor(r.Context(), token)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(StreamMessage{Type: "snapshot", State: c.State()}); err != nil {
		return
	}

	// Drain client frames so close messages are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		}
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
	writeJSON(w, status, ErrorResponse{Error: strings.TrimSpace(msg)})
}

package demoserver

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/secboard/internal/logging"
)

type demoScan struct {
	ID          string    `json:"scan_id"`
	Domain      string    `json:"domain"`
	Revision    int       `json:"revision"`
	Polls       int       `json:"polls"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// DemoServer is an in-memory stand-in for the remote full-scan service.
type DemoServer struct {
	cfg    Config
	logger logging.Logger

	mu       sync.RWMutex
	scenario Scenario
	scans    map[string]*demoScan
	order    []string
	revision map[string]int // domain -> scans started
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config, logger logging.Logger) *DemoServer {
	if logger == nil {
		logger = logging.NewStdoutLogger("demoserver")
	}
	return &DemoServer{
		cfg:      cfg,
		logger:   logger,
		scenario: cfg.Scenario,
		scans:    make(map[string]*demoScan),
		revision: make(map[string]int),
	}
}

// Handler returns the full route table.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/fullScan/scan", s.startScanHandler)
	mux.HandleFunc("GET /api/fullScan/status/{id}", s.statusHandler)
	mux.HandleFunc("GET /api/fullScan/report/{id}", s.reportHandler)
	mux.HandleFunc("GET /api/fullScan/latest/{domain}", s.latestHandler)
	mux.HandleFunc("GET /api/dashboard-summary", s.dashboardSummaryHandler)

	// Control panel for scenario switching
	mux.HandleFunc("GET /demo/control", s.controlPanelHandler)
	mux.HandleFunc("GET /demo/scenario", s.getScenarioHandler)
	mux.HandleFunc("POST /demo/scenario", s.setScenarioHandler)
	mux.HandleFunc("GET /demo/scans", s.listScansHandler)
	mux.HandleFunc("POST /demo/reset", s.resetHandler)

	return mux
}

// Start starts the demo server.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("demo server starting",
		logging.Field{Key: "addr", Value: "http://localhost" + addr},
		logging.Field{Key: "control_panel", Value: "http://localhost" + addr + "/demo/control"})
	return http.ListenAndServe(addr, s.Handler())
}

// Scenario returns the current scenario.
func (s *DemoServer) Scenario() Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scenario
}

// SetScenario replaces the scenario for subsequent polls and scans.
func (s *DemoServer) SetScenario(sc Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario = sc
}

func (s *DemoServer) startScanHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Domain) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "domain is required"})
		return
	}
	domain := strings.ToLower(strings.TrimSpace(body.Domain))

	s.mu.Lock()
	if msg := s.scenario.StartError; msg != "" {
		s.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": msg})
		return
	}
	s.revision[domain]++
	sc := &demoScan{
		ID:        uuid.New().String(),
		Domain:    domain,
		Revision:  s.revision[domain],
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	s.scans[sc.ID] = sc
	s.order = append(s.order, sc.ID)
	s.mu.Unlock()

	s.logger.Info("scan started", logging.Field{Key: "scan_id", Value: sc.ID}, logging.Field{Key: "domain", Value: domain})
	writeJSON(w, http.StatusOK, map[string]string{"scanId": sc.ID})
}

func (s *DemoServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	sc, ok := s.scans[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "scan not found"})
		return
	}
	if sc.Status == "pending" {
		sc.Polls++
		switch {
		case s.scenario.FailAtPoll > 0 && sc.Polls == s.scenario.FailAtPoll:
			sc.Status = "failed"
		case s.scenario.NeverComplete:
		case sc.Polls > s.scenario.PendingPolls:
			sc.Status = "completed"
			sc.CompletedAt = time.Now().UTC()
		}
	}
	status := sc.Status
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"scanId": id, "status": status})
}

func (s *DemoServer) reportHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.RLock()
	sc, ok := s.scans[id]
	var domain string
	var revision int
	var status string
	if ok {
		domain, revision, status = sc.Domain, sc.Revision, sc.Status
	}
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "scan not found"})
		return
	}
	if status != "completed" {
		writeJSON(w, http.StatusConflict, map[string]string{"message": "scan is not completed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(Report(domain, revision))
}

func (s *DemoServer) latestHandler(w http.ResponseWriter, r *http.Request) {
	domain := strings.ToLower(r.PathValue("domain"))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.scenario.LatestEnabled {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no scans for domain"})
		return
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		sc := s.scans[s.order[i]]
		if sc.Domain == domain && sc.Status == "completed" {
			writeJSON(w, http.StatusOK, map[string]string{
				"scanId":    sc.ID,
				"timestamp": sc.CompletedAt.Format(time.RFC3339),
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "no scans for domain"})
}

func (s *DemoServer) dashboardSummaryHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	for _, sc := range s.scans {
		counts[sc.Status]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalScans":     len(s.scans),
		"completedScans": counts["completed"],
		"failedScans":    counts["failed"],
		"pendingScans":   counts["pending"],
		"domains":        len(s.revision),
	})
}

func (s *DemoServer) getScenarioHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scenario())
}

// setScenarioHandler accepts a JSON scenario or the control panel form.
func (s *DemoServer) setScenarioHandler(w http.ResponseWriter, r *http.Request) {
	var sc Scenario
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON"})
			return
		}
	} else {
		var err error
		if sc, err = scenarioFromForm(r); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
	}
	if sc.PendingPolls < 0 || sc.FailAtPoll < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "poll counts must not be negative"})
		return
	}

	s.SetScenario(sc)
	s.logger.Info("scenario updated",
		logging.Field{Key: "pending_polls", Value: sc.PendingPolls},
		logging.Field{Key: "fail_at_poll", Value: sc.FailAtPoll})
	writeJSON(w, http.StatusOK, sc)
}

func (s *DemoServer) listScansHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// resetHandler forgets every scan and restores the configured scenario.
func (s *DemoServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.scans = make(map[string]*demoScan)
	s.order = nil
	s.revision = make(map[string]int)
	s.scenario = s.cfg.Scenario
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All scans cleared",
	})
}

// controlPanelHandler serves the control panel for scenario management.
func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	tmpl := template.Must(template.New("control").Parse(controlPanelHTML))
	data := struct {
		Scenario Scenario
		Scans    []demoScan
		Port     int
	}{
		Scenario: s.Scenario(),
		Scans:    s.snapshot(),
		Port:     s.cfg.Port,
	}
	w.Header().Set("Content-Type", "text/html")
	_ = tmpl.Execute(w, data)
}

func (s *DemoServer) snapshot() []demoScan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]demoScan, 0, len(s.scans))
	for _, sc := range s.scans {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

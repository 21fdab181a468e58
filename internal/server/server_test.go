package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/metrics"
	"github.com/raysh454/secboard/internal/scan"
	"github.com/raysh454/secboard/internal/scanapi"
	"github.com/raysh454/secboard/internal/server"
	"github.com/raysh454/secboard/internal/testutil"
)

const secret = "s3cret"

type fakeSummary struct {
	body json.RawMessage
	err  error
}

func (f fakeSummary) DashboardSummary(context.Context) (json.RawMessage, error) {
	return f.body, f.err
}

type testEnv struct {
	srv      *server.Server
	api      *testutil.FakeScanAPI
	sessions *app.Sessions
}

func newTestServer(t *testing.T, api *testutil.FakeScanAPI) *testEnv {
	t.Helper()

	logger := &testutil.DummyLogger{}
	verifier, err := identity.NewVerifier(identity.VerifierConfig{HMACSecret: secret})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	sessions := app.NewSessions(scan.Config{PollInterval: 5 * time.Millisecond, MaxRetries: 1000}, api, nil, logger, nil)

	s, err := server.NewServer(server.Config{
		ListenAddr: ":0",
		Sessions:   sessions,
		Verifier:   verifier,
		Metrics:    metrics.New(nil),
		Summary:    fakeSummary{body: json.RawMessage(`{"totalScans":3}`)},
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &testEnv{srv: s, api: api, sessions: sessions}
}

func token(t *testing.T, email string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, s http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

// runScan starts a scan over HTTP and waits for it to finish.
func runScan(t *testing.T, env *testEnv, tok, email string) {
	t.Helper()
	rec := doJSON(t, env.srv, "POST", "/api/scan", tok)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started server.StartScanResponse
	decodeJSON(t, rec, &started)

	c, ok := env.sessions.Get(email)
	if !ok {
		t.Fatal("expected a session after starting a scan")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx, started.SessionID); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewServer_RequiresVerifier(t *testing.T) {
	t.Parallel()
	sessions := app.NewSessions(scan.Config{}, &testutil.FakeScanAPI{}, nil, &testutil.DummyLogger{}, nil)
	t.Cleanup(func() { _ = sessions.Close() })

	_, err := server.NewServer(server.Config{Sessions: sessions})
	if !errors.Is(err, server.ErrNoVerifier) {
		t.Errorf("expected ErrNoVerifier, got %v", err)
	}
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "GET", "/healthz", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "OPTIONS", "/api/scan", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
		t.Errorf("expected POST in Allow-Methods, got %q", methods)
	}
}

// ─── Auth ──────────────────────────────────────────────────────────────

func TestServer_RejectsMissingToken(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "GET", "/api/scan", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Error != "missing bearer token" {
		t.Errorf("unexpected error %q", body.Error)
	}
}

func TestServer_RejectsForeignToken(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "eve@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := doJSON(t, env.srv, "GET", "/api/scan", forged)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if env.sessions.Len() != 0 {
		t.Error("expected no session for a rejected token")
	}
}

// ─── Scan lifecycle ────────────────────────────────────────────────────

func TestServer_StateBeforeAnyScan(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})
	tok := token(t, "user@example.com")

	rec := doJSON(t, env.srv, "GET", "/api/scan", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st scan.State
	decodeJSON(t, rec, &st)
	if st.Status != scan.StatusIdle || st.Result != nil {
		t.Errorf("unexpected state %+v", st)
	}

	if rec := doJSON(t, env.srv, "GET", "/api/scan/last", tok); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for last scan, got %d", rec.Code)
	}
	if rec := doJSON(t, env.srv, "GET", "/api/scan/summary", tok); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for summary, got %d", rec.Code)
	}
	if rec := doJSON(t, env.srv, "GET", "/api/scan/modules/dnsSecurity", tok); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for module, got %d", rec.Code)
	}
	if env.api.Calls("start") != 0 {
		t.Error("reading state must not start a scan")
	}
}

func TestServer_StartScanAndReadResults(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{PendingPolls: 2})
	tok := token(t, "user@example.com")

	runScan(t, env, tok, "user@example.com")

	rec := doJSON(t, env.srv, "GET", "/api/scan", tok)
	var st scan.State
	decodeJSON(t, rec, &st)
	if st.Status != scan.StatusIdle || st.Result == nil || st.Result.Domain != "example.com" {
		t.Fatalf("unexpected state %+v", st)
	}

	rec = doJSON(t, env.srv, "GET", "/api/scan/last", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for last scan, got %d", rec.Code)
	}
	var last map[string]any
	decodeJSON(t, rec, &last)
	if last["domain"] != "example.com" {
		t.Errorf("unexpected last scan %v", last)
	}

	rec = doJSON(t, env.srv, "GET", "/api/scan/summary", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for summary, got %d", rec.Code)
	}
	var summary map[string]any
	decodeJSON(t, rec, &summary)
	if summary["domain"] != "example.com" || summary["grade"] == "" {
		t.Errorf("unexpected summary %v", summary)
	}

	rec = doJSON(t, env.srv, "GET", "/api/scan/modules/dnsSecurity", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for module, got %d", rec.Code)
	}
	var mod map[string]any
	decodeJSON(t, rec, &mod)
	if mod["module"] != "dnsSecurity" || mod["label"] == "" {
		t.Errorf("unexpected module response %v", mod)
	}
	if data, ok := mod["data"].(map[string]any); !ok || data["example.com"] == nil {
		t.Errorf("expected example.com entry in module data, got %v", mod["data"])
	}

	rec = doJSON(t, env.srv, "GET", "/api/scan/modules/spf", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for spf alias, got %d", rec.Code)
	}
	decodeJSON(t, rec, &mod)
	if mod["module"] != "spfSecurity" {
		t.Errorf("expected canonical module name, got %v", mod["module"])
	}

	if rec := doJSON(t, env.srv, "GET", "/api/scan/modules/cloudSecurity", tok); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for absent module, got %d", rec.Code)
	}

	rec = doJSON(t, env.srv, "GET", "/api/scan/modules/quantumSecurity/overview", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for quantum overview, got %d: %s", rec.Code, rec.Body.String())
	}
	var overview map[string]any
	decodeJSON(t, rec, &overview)
	if overview["domain"] != "example.com" {
		t.Errorf("unexpected overview %v", overview)
	}
}

func TestServer_StartScan_InvalidDomain(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "POST", "/api/scan", token(t, "not-an-email"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Error != scan.MsgInvalidDomain {
		t.Errorf("expected %q, got %q", scan.MsgInvalidDomain, body.Error)
	}
	if env.api.Calls("start") != 0 {
		t.Error("expected no start call")
	}
}

func TestServer_StartScan_ServiceError(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{
		StartErr: &scanapi.APIError{Op: "start scan", StatusCode: http.StatusServiceUnavailable, Message: "Scanner busy"},
	})

	rec := doJSON(t, env.srv, "POST", "/api/scan", token(t, "user@example.com"))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Error != "Scanner busy" {
		t.Errorf("expected service message, got %q", body.Error)
	}
}

func TestServer_CancelScan(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{AlwaysPending: true})
	tok := token(t, "user@example.com")

	if rec := doJSON(t, env.srv, "POST", "/api/scan", tok); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	rec := doJSON(t, env.srv, "DELETE", "/api/scan", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body server.CancelScanResponse
	decodeJSON(t, rec, &body)
	if !body.Canceled {
		t.Error("expected the running scan to be canceled")
	}

	rec = doJSON(t, env.srv, "DELETE", "/api/scan", tok)
	decodeJSON(t, rec, &body)
	if body.Canceled {
		t.Error("expected nothing left to cancel")
	}
}

func TestServer_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	runScan(t, env, token(t, "alice@example.com"), "alice@example.com")

	rec := doJSON(t, env.srv, "GET", "/api/scan", token(t, "bob@other.example"))
	var st scan.State
	decodeJSON(t, rec, &st)
	if st.Result != nil {
		t.Error("expected bob to see no result from alice's session")
	}
	if env.sessions.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", env.sessions.Len())
	}
}

// ─── Ambient endpoints ─────────────────────────────────────────────────

func TestServer_DashboardSummary(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "GET", "/api/dashboard-summary", token(t, "user@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"totalScans":3}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health server.HealthResponse
	decodeJSON(t, rec, &health)
	if health.Status != "ok" {
		t.Errorf("unexpected health %+v", health)
	}

	runScan(t, env, token(t, "user@example.com"), "user@example.com")

	rec = doJSON(t, env.srv, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "secboard_scans_started_total") {
		t.Error("expected scan metrics in exposition")
	}
}

func TestServer_SwaggerDoc(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})

	rec := doJSON(t, env.srv, "GET", "/swagger/doc.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Secboard API") {
		t.Error("expected the API title in the swagger document")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_ScanWS_StreamsEvents(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{PendingPolls: 1})
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)
	tok := token(t, "user@example.com")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan?token=" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap server.StreamMessage
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Type != "snapshot" || snap.State.Status != scan.StatusIdle {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/scan", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/scan: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var types []scan.EventType
	for {
		var ev scan.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event after %v: %v", types, err)
		}
		types = append(types, ev.Type)
		if ev.Type == scan.EventResult {
			if ev.Domain != "example.com" {
				t.Errorf("unexpected result domain %q", ev.Domain)
			}
			break
		}
	}
	if types[0] != scan.EventStatus {
		t.Errorf("expected a loading status first, got %v", types)
	}
}

func TestServer_ScanWS_RejectsBadToken(t *testing.T) {
	t.Parallel()
	env := newTestServer(t, &testutil.FakeScanAPI{})
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/scan?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}

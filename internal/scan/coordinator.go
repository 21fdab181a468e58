// Package scan owns the scan lifecycle for one identity: it derives the target
// domain, starts remote scans, polls them on a fixed interval with a bounded
// retry budget, normalizes and caches the report, and serves read-only views
// of the current result.
//
// At most one session polls at a time. Starting a new scan cancels the
// previous session and waits for it to stop before anything else happens,
// so a superseded session can never overwrite newer state or cache entries.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/secboard/internal/cache"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/metrics"
	"github.com/raysh454/secboard/internal/model"
	"github.com/raysh454/secboard/internal/results"
	"github.com/raysh454/secboard/internal/scanapi"
)

// ScanAPI is the remote scanning service as the coordinator uses it.
type ScanAPI interface {
	StartScan(ctx context.Context, domain string) (string, error)
	Status(ctx context.Context, scanID string) (*scanapi.ScanStatus, error)
	Report(ctx context.Context, scanID string) (json.RawMessage, error)
	Latest(ctx context.Context, domain string) (*scanapi.LatestScan, error)
}

const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxRetries   = 20

	eventBuffer    = 16
	maxTrackedRuns = 16
)

type Config struct {
	// PollInterval is the fixed delay between status polls.
	PollInterval time.Duration

	// MaxRetries is the number of non-terminal polls after which a scan
	// times out.
	MaxRetries int

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		MaxRetries:   DefaultMaxRetries,
		Now:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type run struct {
	id         string
	cancel     context.CancelFunc
	done       chan struct{}
	started    time.Time
	superseded bool
	err        error
}

type outcome struct {
	status  SessionStatus
	err     error
	message string
	metric  string

	result  *model.ScanResult
	at      time.Time
	changes []results.RecordChange
}

type Coordinator struct {
	cfg     Config
	api     ScanAPI
	store   cache.Store
	logger  logging.Logger
	metrics *metrics.Collector

	// startMu serializes Initialize and StartNewScan.
	startMu sync.Mutex

	mu             sync.RWMutex
	identity       identity.Identity
	initializedFor string
	state          State
	active         *run
	runs           map[string]*run
	runOrder       []string
	subs           map[int]chan Event
	nextSub        int
	closed         bool
}

// New builds a coordinator. A nil store falls back to an in-memory cache and
// a nil collector disables metrics.
func New(cfg Config, api ScanAPI, store cache.Store, logger logging.Logger, m *metrics.Collector) *Coordinator {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &Coordinator{
		cfg:     cfg.withDefaults(),
		api:     api,
		store:   store,
		logger:  logger.With(logging.Field{Key: "component", Value: "scan"}),
		metrics: m,
		state:   State{Status: StatusIdle},
		runs:    make(map[string]*run),
		subs:    make(map[int]chan Event),
	}
}

// SetIdentity replaces the identity scans are derived from without touching
// the cache or the network.
func (c *Coordinator) SetIdentity(id identity.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

// Identity returns the identity scans are derived from.
func (c *Coordinator) Identity() identity.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Initialize adopts a cached result for the identity's domain, or else the
// most recent remote scan of that domain. It never starts a scan. Remote
// failures are logged and leave the coordinator idle. Repeated calls for the
// email, compared case-insensitively, do nothing.
func (c *Coordinator) Initialize(ctx context.Context, id identity.Identity) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.identity = id
	if c.initializedFor == id.Key() {
		c.mu.Unlock()
		return nil
	}
	c.initializedFor = id.Key()
	busy := c.runningLocked()
	c.mu.Unlock()

	domain, err := id.Domain()
	if err != nil {
		c.logger.Warn("cannot derive scan domain from identity", logging.Field{Key: "error", Value: err.Error()})
		return err
	}
	if busy {
		return nil
	}
	log := c.logger.With(logging.Field{Key: "domain", Value: domain})

	if entry := c.store.Load(ctx); entry != nil {
		if entry.Result.Domain == domain {
			c.adopt(entry.Result, entry.Timestamp)
			log.Info("restored cached scan result",
				logging.Field{Key: "scan_time", Value: entry.Timestamp.Format(time.RFC3339)})
			return nil
		}
		log.Info("discarding cached scan result for another domain",
			logging.Field{Key: "cached_domain", Value: entry.Result.Domain})
		c.store.Clear(ctx)
	}

	c.setStatus(StatusLoading)
	latest, err := c.api.Latest(ctx, domain)
	if err != nil {
		log.Warn("failed to fetch latest scan", logging.Field{Key: "error", Value: err.Error()})
		c.setStatus(StatusIdle)
		return nil
	}
	if latest == nil {
		log.Info("no previous scan for domain")
		c.setStatus(StatusIdle)
		return nil
	}

	raw, err := c.api.Report(ctx, latest.ScanID)
	if err != nil {
		log.Warn("failed to fetch latest scan report",
			logging.Field{Key: "scan_id", Value: latest.ScanID},
			logging.Field{Key: "error", Value: err.Error()})
		c.setStatus(StatusIdle)
		return nil
	}

	at := parseTimestamp(latest.Timestamp, c.cfg.Now())
	result, err := model.Normalize(raw, domain, at)
	if err != nil {
		log.Warn("latest scan report is unreadable", logging.Field{Key: "error", Value: err.Error()})
		c.setStatus(StatusIdle)
		return nil
	}
	result.Timestamp = latest.Timestamp

	c.store.Save(ctx, result, at)
	c.adopt(result, at)
	log.Info("adopted latest remote scan", logging.Field{Key: "scan_id", Value: latest.ScanID})
	return nil
}

// StartNewScan cancels any in-flight session, clears the current result and
// the cache, and asks the service for a new scan. The start request is
// synchronous; polling continues in the background and ends in State.
func (c *Coordinator) StartNewScan(ctx context.Context) (string, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.RLock()
	closed, id := c.closed, c.identity
	c.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	domain, err := id.Domain()
	if err != nil {
		c.mu.Lock()
		c.state.Status = StatusError
		c.state.ErrorMessage = MsgInvalidDomain
		c.emitLocked(Event{Type: EventStatus, Status: StatusError, Error: MsgInvalidDomain})
		c.mu.Unlock()
		return "", err
	}

	c.supersede()

	now := c.cfg.Now()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{id: uuid.New().String(), cancel: cancel, done: make(chan struct{}), started: now}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	prev := c.state.Result
	c.active = r
	c.trackLocked(r)
	c.state = State{
		Status:  StatusLoading,
		Session: &Session{ID: r.id, Status: SessionRunning, Domain: domain, StartedAt: now},
	}
	c.emitLocked(Event{Type: EventStatus, SessionID: r.id, Status: StatusLoading, Domain: domain})
	c.mu.Unlock()

	c.store.Clear(ctx)

	log := c.logger.With(
		logging.Field{Key: "session_id", Value: r.id},
		logging.Field{Key: "domain", Value: domain})
	log.Info("starting scan")

	postCtx, stop := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(runCtx, stop)
	scanID, err := c.api.StartScan(postCtx, domain)
	stopAfter()
	stop()
	if err != nil {
		if runCtx.Err() != nil || ctx.Err() != nil {
			log.Info("scan start canceled")
			c.finish(r, outcome{status: SessionCanceled, err: ErrScanCanceled})
			return "", ErrScanCanceled
		}
		wrapped := fmt.Errorf("%w: %w", ErrScanStart, err)
		log.Warn("failed to start scan", logging.Field{Key: "error", Value: err.Error()})
		c.finish(r, outcome{status: SessionFailed, err: wrapped, message: startErrorMessage(err)})
		return "", wrapped
	}
	c.metrics.ScanStarted()

	c.mu.Lock()
	if c.active == r && c.state.Session != nil && c.state.Session.ID == r.id {
		c.state.Session.ScanID = scanID
	}
	c.mu.Unlock()

	go c.poll(runCtx, r, domain, scanID, prev, log.With(logging.Field{Key: "scan_id", Value: scanID}))
	return r.id, nil
}

func (c *Coordinator) poll(ctx context.Context, r *run, domain, scanID string, prev *model.ScanResult, log logging.Logger) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	canceled := outcome{status: SessionCanceled, err: ErrScanCanceled, metric: metrics.OutcomeCanceled}
	retries := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("scan polling canceled", logging.Field{Key: "polls", Value: retries})
			c.finish(r, canceled)
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			c.finish(r, canceled)
			return
		}

		c.metrics.Poll()
		st, err := c.api.Status(ctx, scanID)
		if err != nil {
			if ctx.Err() != nil {
				c.finish(r, canceled)
				return
			}
			log.Warn("scan status request failed", logging.Field{Key: "error", Value: err.Error()})
			c.finish(r, outcome{
				status:  SessionFailed,
				err:     fmt.Errorf("%w: status: %w", ErrScanTransport, err),
				message: transportErrorMessage(err),
				metric:  metrics.OutcomeError,
			})
			return
		}

		switch {
		case st.Completed():
			c.complete(ctx, r, domain, scanID, prev, log)
			return
		case st.Failed():
			log.Warn("scan reported failure")
			c.finish(r, outcome{status: SessionFailed, err: ErrScanFailed, message: MsgScanFailed, metric: metrics.OutcomeFailed})
			return
		}

		retries++
		c.progress(r, retries)
		if retries >= c.cfg.MaxRetries {
			log.Warn("scan timed out", logging.Field{Key: "polls", Value: retries})
			c.finish(r, outcome{status: SessionFailed, err: ErrScanTimeout, message: MsgScanTimeout, metric: metrics.OutcomeTimeout})
			return
		}
	}
}

func (c *Coordinator) complete(ctx context.Context, r *run, domain, scanID string, prev *model.ScanResult, log logging.Logger) {
	canceled := outcome{status: SessionCanceled, err: ErrScanCanceled, metric: metrics.OutcomeCanceled}

	raw, err := c.api.Report(ctx, scanID)
	if err != nil {
		if ctx.Err() != nil {
			c.finish(r, canceled)
			return
		}
		log.Warn("scan report request failed", logging.Field{Key: "error", Value: err.Error()})
		c.finish(r, outcome{
			status:  SessionFailed,
			err:     fmt.Errorf("%w: report: %w", ErrScanTransport, err),
			message: transportErrorMessage(err),
			metric:  metrics.OutcomeError,
		})
		return
	}

	at := c.cfg.Now()
	result, err := model.Normalize(raw, domain, at)
	if err != nil {
		log.Warn("scan report is unreadable", logging.Field{Key: "error", Value: err.Error()})
		c.finish(r, outcome{
			status:  SessionFailed,
			err:     fmt.Errorf("%w: decode report: %w", ErrScanFailed, err),
			message: MsgScanFailed,
			metric:  metrics.OutcomeFailed,
		})
		return
	}
	if ctx.Err() != nil {
		c.finish(r, canceled)
		return
	}

	c.store.Save(ctx, result, at)
	log.Info("scan completed", logging.Field{Key: "modules", Value: len(result.GroupedResults)})
	c.finish(r, outcome{
		status:  SessionCompleted,
		metric:  metrics.OutcomeCompleted,
		result:  result,
		at:      at,
		changes: results.RecordChanges(prev, result),
	})
}

// finish records the end of r and, when r is still the current session,
// publishes the outcome. It releases r's context and unblocks waiters.
func (c *Coordinator) finish(r *run, o outcome) {
	now := c.cfg.Now()

	c.mu.Lock()
	r.err = o.err
	if c.active == r && !r.superseded {
		var sess *Session
		if c.state.Session != nil && c.state.Session.ID == r.id {
			cp := *c.state.Session
			cp.Status = o.status
			cp.Error = o.message
			cp.EndedAt = now
			sess = &cp
		}

		switch o.status {
		case SessionCompleted:
			at := o.at
			c.state = State{Status: StatusIdle, Result: o.result, LastScanTime: &at, Session: sess, Changes: o.changes}
			c.emitLocked(Event{Type: EventResult, SessionID: r.id, Status: StatusIdle, Domain: o.result.Domain})
		case SessionCanceled:
			c.state.Status = StatusIdle
			c.state.ErrorMessage = ""
			c.state.Session = sess
			c.emitLocked(Event{Type: EventStatus, SessionID: r.id, Status: StatusIdle})
		default:
			c.state = State{Status: StatusError, ErrorMessage: o.message, Session: sess}
			c.emitLocked(Event{Type: EventStatus, SessionID: r.id, Status: StatusError, Error: o.message})
		}
	}
	c.mu.Unlock()

	if o.metric != "" {
		c.metrics.ScanFinished(o.metric, now.Sub(r.started))
	}
	r.cancel()
	close(r.done)
}

func (c *Coordinator) progress(r *run, retries int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != r || r.superseded {
		return
	}
	if c.state.Session != nil && c.state.Session.ID == r.id {
		c.state.Session.RetryCount = retries
	}
	c.emitLocked(Event{
		Type:       EventProgress,
		SessionID:  r.id,
		Status:     c.state.Status,
		RetryCount: retries,
		MaxRetries: c.cfg.MaxRetries,
	})
}

// supersede cancels the current session and waits until it has stopped.
func (c *Coordinator) supersede() {
	c.mu.Lock()
	r := c.active
	if r != nil {
		r.superseded = true
	}
	c.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Cancel stops the in-flight session, if any, and reports whether one was
// running. The coordinator returns to idle.
func (c *Coordinator) Cancel() bool {
	c.mu.RLock()
	r := c.active
	c.mu.RUnlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
	}
	r.cancel()
	<-r.done
	return true
}

// Wait blocks until the session ends and returns its error (nil on success).
func (c *Coordinator) Wait(ctx context.Context, sessionID string) error {
	c.mu.RLock()
	r, ok := c.runs[sessionID]
	c.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels polling and closes every subscription. After Close no further
// polls happen and new scans are refused.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	r := c.active
	c.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
	}

	c.mu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
	return nil
}

// State returns a snapshot. The result is shared and must not be modified.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if s.Session != nil {
		cp := *s.Session
		s.Session = &cp
	}
	if s.LastScanTime != nil {
		t := *s.LastScanTime
		s.LastScanTime = &t
	}
	return s
}

// Subscribe returns a channel of state events and a function that ends the
// subscription. Slow subscribers miss events rather than block the scan.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// GetModuleData returns the named module of the current result, or nil.
func (c *Coordinator) GetModuleData(name string) model.ModuleResult {
	return results.ModuleData(c.result(), name)
}

// HasModuleErrors reports whether the named module signals a problem.
func (c *Coordinator) HasModuleErrors(name string) bool {
	return results.HasModuleErrors(c.result(), name)
}

// GetLastScanInfo returns nil until a scan result has been adopted.
func (c *Coordinator) GetLastScanInfo() *results.Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.LastScanTime == nil {
		return nil
	}
	return results.LastScanInfo(c.state.Result, *c.state.LastScanTime)
}

func (c *Coordinator) result() *model.ScanResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Result
}

func (c *Coordinator) adopt(result *model.ScanResult, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{Status: StatusIdle, Result: result, LastScanTime: &at}
	c.emitLocked(Event{Type: EventResult, Status: StatusIdle, Domain: result.Domain})
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == s {
		return
	}
	c.state.Status = s
	if s != StatusError {
		c.state.ErrorMessage = ""
	}
	c.emitLocked(Event{Type: EventStatus, Status: s})
}

func (c *Coordinator) runningLocked() bool {
	if c.active == nil {
		return false
	}
	select {
	case <-c.active.done:
		return false
	default:
		return true
	}
}

func (c *Coordinator) trackLocked(r *run) {
	c.runs[r.id] = r
	c.runOrder = append(c.runOrder, r.id)
	for len(c.runOrder) > maxTrackedRuns {
		oldest := c.runs[c.runOrder[0]]
		if oldest != nil {
			select {
			case <-oldest.done:
			default:
				return
			}
		}
		delete(c.runs, c.runOrder[0])
		c.runOrder = c.runOrder[1:]
	}
}

// emitLocked fans ev out without blocking. Callers hold c.mu.
func (c *Coordinator) emitLocked(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = c.cfg.Now()
	}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t
}

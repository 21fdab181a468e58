package app

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/raysh454/secboard/internal/cache"
	"github.com/raysh454/secboard/internal/identity"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/metrics"
	"github.com/raysh454/secboard/internal/scan"
)

var ErrSessionsClosed = errors.New("sessions closed")

// Sessions maps a signed-in email to its scan coordinator. Coordinators are
// created on first use and initialized from the cache or the latest remote
// scan of the user's domain.
type Sessions struct {
	cfg     scan.Config
	api     scan.ScanAPI
	store   *cache.SQLiteStore
	logger  logging.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	coords map[string]*scan.Coordinator
	closed bool
}

// NewSessions ties together the scan API, the shared cache database and the
// logger. A nil store keeps each user's cache in memory.
func NewSessions(cfg scan.Config, api scan.ScanAPI, store *cache.SQLiteStore, logger logging.Logger, m *metrics.Collector) *Sessions {
	return &Sessions{
		cfg:     cfg,
		api:     api,
		store:   store,
		logger:  logger,
		metrics: m,
		coords:  make(map[string]*scan.Coordinator),
	}
}

// For returns the coordinator of id.Email, creating and initializing it on
// first use. Identities without a usable domain still get a coordinator so
// that starting a scan reports the domain error through its state.
func (s *Sessions) For(ctx context.Context, id identity.Identity) (*scan.Coordinator, error) {
	key := id.Key()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionsClosed
	}
	c, ok := s.coords[key]
	if !ok {
		c = scan.New(s.cfg, s.api, s.storeFor(id), s.logger.With(logging.Field{Key: "email", Value: key}), s.metrics)
		s.coords[key] = c
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Info("created scan session", logging.Field{Key: "email", Value: key})
	}
	if err := c.Initialize(ctx, id); err != nil && !errors.Is(err, identity.ErrInvalidDomain) {
		return nil, err
	}
	c.SetIdentity(id)
	return c, nil
}

// Get returns the existing coordinator of email, if any.
func (s *Sessions) Get(email string) (*scan.Coordinator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coords[identity.Identity{Email: email}.Key()]
	return c, ok
}

// Len reports how many coordinators exist.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coords)
}

// Close stops every coordinator's polling. Later calls to For fail.
func (s *Sessions) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	coords := s.coords
	s.coords = make(map[string]*scan.Coordinator)
	s.mu.Unlock()

	var g errgroup.Group
	for _, c := range coords {
		g.Go(c.Close)
	}
	return g.Wait()
}

func (s *Sessions) storeFor(id identity.Identity) cache.Store {
	domain, err := id.Domain()
	if err != nil || s.store == nil {
		return cache.NewMemoryStore()
	}
	return s.store.WithKey(cache.NamespacedKey(domain))
}

package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pressly/goose/v3"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/metrics"
	"github.com/raysh454/secboard/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore keeps entries in a single SQLite table. Payloads are zstd
// compressed JSON with an xxh3 checksum of the uncompressed bytes.
type SQLiteStore struct {
	db      *sql.DB
	ownsDB  bool
	key     string
	logger  logging.Logger
	metrics *metrics.Collector
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

type Option func(*SQLiteStore)

// WithMetrics counts cache operations.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *SQLiteStore) { s.metrics = m }
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, logger logging.Logger, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	s, err := NewSQLiteStore(ctx, db, logger, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStore migrates db and returns a store under DefaultKey.
func NewSQLiteStore(ctx context.Context, db *sql.DB, logger logging.Logger, opts ...Option) (*SQLiteStore, error) {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("cache migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("cache migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		key:    DefaultKey,
		logger: logger.With(logging.Field{Key: "component", Value: "cache"}),
		enc:    enc,
		dec:    dec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WithKey returns a view of the same database under another key.
func (s *SQLiteStore) WithKey(key string) *SQLiteStore {
	cp := *s
	cp.key = key
	cp.ownsDB = false
	cp.logger = s.logger.With(logging.Field{Key: "cache_key", Value: key})
	return &cp
}

func (s *SQLiteStore) Key() string { return s.key }

func (s *SQLiteStore) Save(ctx context.Context, result *model.ScanResult, timestamp time.Time) {
	raw, err := encodeEntry(result, timestamp)
	if err != nil {
		s.fail("save", "failed to encode cache entry", err)
		return
	}

	payload := s.enc.EncodeAll(raw, nil)
	checksum := strconv.FormatUint(xxh3.Hash(raw), 16)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, checksum, timestamp, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			checksum = excluded.checksum,
			timestamp = excluded.timestamp,
			updated_at = excluded.updated_at`,
		s.key, payload, checksum, timestamp.UTC().Format(time.RFC3339Nano), time.Now().Unix())
	if err != nil {
		s.fail("save", "failed to write cache entry", err)
		return
	}
	s.metrics.CacheOp("save", metrics.CacheOK)
	s.logger.Debug("cached scan result",
		logging.Field{Key: "domain", Value: result.Domain},
		logging.Field{Key: "bytes", Value: len(payload)})
}

func (s *SQLiteStore) Load(ctx context.Context) *Entry {
	var payload []byte
	var checksum string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, checksum FROM cache_entries WHERE key = ?`, s.key).Scan(&payload, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.CacheOp("load", metrics.CacheMiss)
		return nil
	}
	if err != nil {
		s.fail("load", "failed to read cache entry", err)
		return nil
	}

	raw, err := s.dec.DecodeAll(payload, nil)
	if err != nil {
		s.fail("load", "corrupt cache entry", err)
		return nil
	}
	if got := strconv.FormatUint(xxh3.Hash(raw), 16); got != checksum {
		s.fail("load", "cache entry checksum mismatch", fmt.Errorf("want %s, got %s", checksum, got))
		return nil
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		s.fail("load", "unreadable cache entry", err)
		return nil
	}
	s.metrics.CacheOp("load", metrics.CacheHit)
	return entry
}

func (s *SQLiteStore) Clear(ctx context.Context) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, s.key); err != nil {
		s.fail("clear", "failed to clear cache entry", err)
		return
	}
	s.metrics.CacheOp("clear", metrics.CacheOK)
}

// Close releases the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) fail(op, msg string, err error) {
	s.metrics.CacheOp(op, metrics.CacheError)
	s.logger.Warn(msg, logging.Field{Key: "op", Value: op}, logging.Field{Key: "error", Value: err.Error()})
}

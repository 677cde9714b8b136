package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/aegis/pkg/safety"
)

// SQLiteStore is a Store that keeps scores in a SQLite database so the
// cache survives restarts. It is bounded by entry count and evicts the
// least recently accessed entries first.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	capacity  int
	opts      options
	logger    *slog.Logger
	mu        sync.Mutex
	closeOnce sync.Once

	getStmt   *sql.Stmt
	touchStmt *sql.Stmt
	putStmt   *sql.Stmt
	countStmt *sql.Stmt
	evictStmt *sql.Stmt
	pruneStmt *sql.Stmt
}

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Capacity is the maximum number of entries. Zero or less means
	// unbounded.
	Capacity int

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// Logger receives store diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the cache database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig, opts ...Option) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite cache path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:       db,
		path:     cfg.Path,
		capacity: cfg.Capacity,
		opts:     o,
		logger:   cfg.Logger.With("component", "cache.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("sqlite cache opened", "path", cfg.Path, "capacity", cfg.Capacity)

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		fingerprint TEXT PRIMARY KEY,
		score TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		accessed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_cache_accessed_at ON analysis_cache(accessed_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_cache_created_at ON analysis_cache(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`SELECT score FROM analysis_cache WHERE fingerprint = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.touchStmt, err = s.db.Prepare(`UPDATE analysis_cache SET accessed_at = ? WHERE fingerprint = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO analysis_cache (fingerprint, score, created_at, accessed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			score = excluded.score,
			created_at = excluded.created_at,
			accessed_at = excluded.accessed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM analysis_cache`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.evictStmt, err = s.db.Prepare(`
		DELETE FROM analysis_cache
		WHERE fingerprint IN (
			SELECT fingerprint FROM analysis_cache
			ORDER BY accessed_at ASC
			LIMIT ?
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare evict statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`DELETE FROM analysis_cache WHERE created_at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, fp Fingerprint) (*safety.Score, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.getStmt.QueryRowContext(ctx, string(fp)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var score safety.Score
	if err := json.Unmarshal([]byte(data), &score); err != nil {
		return nil, false, &safety.SerializationError{Cause: err}
	}

	if _, err := s.touchStmt.ExecContext(ctx, s.opts.now().UnixNano(), string(fp)); err != nil {
		return nil, false, fmt.Errorf("failed to update cache access time: %w", err)
	}

	return &score, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, fp Fingerprint, score *safety.Score) error {
	if score == nil {
		return nil
	}

	data, err := json.Marshal(score)
	if err != nil {
		return &safety.SerializationError{Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now().UnixNano()
	if _, err := s.putStmt.ExecContext(ctx, string(fp), string(data), now, now); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if s.capacity <= 0 {
		return nil
	}

	var count int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	if count <= s.capacity {
		return nil
	}

	result, err := s.evictStmt.ExecContext(ctx, count-s.capacity)
	if err != nil {
		return fmt.Errorf("failed to evict cache entries: %w", err)
	}
	if evicted, err := result.RowsAffected(); err == nil && evicted > 0 {
		s.opts.onEvict(int(evicted))
	}

	return nil
}

// Len implements Store. It returns 0 if the count cannot be read.
func (s *SQLiteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.countStmt.QueryRow().Scan(&count); err != nil {
		s.logger.Error("failed to count cache entries", "error", err)
		return 0
	}
	return count
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pruneStmt.ExecContext(ctx, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{s.getStmt, s.touchStmt, s.putStmt, s.countStmt, s.evictStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"homelab-metrics/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

var _ domain.MetricStore = &SQLiteStore{}

const (
	createTableSQL = `
	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id TEXT NOT NULL,
		cpu_percent REAL NOT NULL,
		ram_percent REAL NOT NULL,
		timestamp INTEGER NOT NULL
	);`
	createIndexSQL = `
	CREATE INDEX IF NOT EXISTS idx_metrics_node_time
		ON metrics(node_id, timestamp);`

	insertSQL   = "INSERT INTO metrics(node_id, cpu_percent, ram_percent, timestamp) VALUES(?, ?, ?, ?)"
	queryRawSQL = "SELECT timestamp, cpu_percent, ram_percent FROM metrics WHERE node_id = ? AND timestamp > ? ORDER BY timestamp ASC"
	cleanupSQL  = "DELETE FROM metrics WHERE timestamp < ?"
	nodeIDsSQL  = "SELECT DISTINCT node_id FROM metrics"
	statsSQL    = "SELECT node_id, COUNT(*), MIN(timestamp), MAX(timestamp) FROM metrics GROUP BY node_id ORDER BY node_id"
)

var ErrStoreNotInitialized = errors.New("metrics store is not initialized")

type Option func(*SQLiteStore)

// WithLogger sets the logger used by the retention sweep.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) {
		s.logger = l
	}
}

// WithClock replaces the wall clock used for timestamps, throttling and
// retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

func WithCleanupInterval(d time.Duration) Option {
	return func(s *SQLiteStore) {
		s.cleanupInterval = d
	}
}

type SQLiteStore struct {
	dbPath string
	dbRW   *sql.DB
	dbRO   *sql.DB

	insertStmt   *sql.Stmt
	queryRawStmt *sql.Stmt
	cleanupStmt  *sql.Stmt

	logger          *zap.Logger
	now             func() time.Time
	cleanupInterval time.Duration
	throttle        *throttle

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		dbPath:          path,
		logger:          zap.NewNop(),
		now:             time.Now,
		cleanupInterval: domain.CleanupInterval,
		throttle:        newThrottle(domain.ThrottleWindow),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the data directory, opens the database in WAL mode and
// creates the schema. It is safe to run against an existing database.
func (s *SQLiteStore) Init() error {
	var err error

	if dir := filepath.Dir(s.dbPath); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating data directory: %w", err)
		}
	}

	s.dbRW, err = openSQLite(s.dbPath, false)
	if err != nil {
		return err
	}
	if err = s.dbRW.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	if _, err = s.dbRW.Exec(createTableSQL); err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}
	if _, err = s.dbRW.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("error creating index: %w", err)
	}

	// read-only pool is opened after the schema exists so mode=ro can attach
	s.dbRO, err = openSQLite(s.dbPath, true)
	if err != nil {
		return err
	}

	if s.insertStmt, err = s.dbRW.Prepare(insertSQL); err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	if s.cleanupStmt, err = s.dbRW.Prepare(cleanupSQL); err != nil {
		return fmt.Errorf("error preparing cleanup statement: %w", err)
	}
	if s.queryRawStmt, err = s.dbRO.Prepare(queryRawSQL); err != nil {
		return fmt.Errorf("error preparing query statement: %w", err)
	}

	s.logger.Info("sqlite metrics store initialized", zap.String("path", s.dbPath))
	return nil
}

// uriPathEscaper escapes the characters that would end the path part of a
// file: URI; sqlite decodes them back when opening.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// openSQLite opens the file with WAL journaling so that readers are not
// blocked by the writer. Writers share a single connection.
// ref. https://github.com/mattn/go-sqlite3#connection-string
// ref. https://www.sqlite.org/uri.html
func openSQLite(file string, readOnly bool) (*sql.DB, error) {
	conns := "file:" + uriPathEscaper.Replace(file) + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	if readOnly {
		conns += "&mode=ro"
	} else {
		conns += "&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", conns)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w (%q)", err, conns)
	}

	if !readOnly {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	return db, nil
}

func (s *SQLiteStore) Record(ctx context.Context, nodeID string, cpuPercent, ramPercent float64) error {
	if s.insertStmt == nil {
		return ErrStoreNotInitialized
	}

	now := s.now().UnixMilli()
	prev, ok := s.throttle.reserve(nodeID, now)
	if !ok {
		recordThrottled()
		return nil
	}

	if err := s.insert(ctx, domain.Sample{NodeID: nodeID, CPUPercent: cpuPercent, RAMPercent: ramPercent, Timestamp: now}); err != nil {
		s.throttle.release(nodeID, now, prev)
		return err
	}
	return nil
}

// Insert writes a sample with its own timestamp, bypassing the throttle.
// Used to backfill history.
func (s *SQLiteStore) Insert(ctx context.Context, sample domain.Sample) error {
	if s.insertStmt == nil {
		return ErrStoreNotInitialized
	}
	return s.insert(ctx, sample)
}

func (s *SQLiteStore) insert(ctx context.Context, sample domain.Sample) error {
	start := time.Now()
	_, err := s.insertStmt.ExecContext(ctx, sample.NodeID, sample.CPUPercent, sample.RAMPercent, sample.Timestamp)
	if err != nil {
		return fmt.Errorf("error inserting metric: %w", err)
	}
	recordInsert(time.Since(start).Seconds())
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, nodeID string, r domain.Range) ([]domain.Point, error) {
	if s.queryRawStmt == nil {
		return nil, ErrStoreNotInitialized
	}

	since := s.now().Add(-r.Duration()).UnixMilli()

	start := time.Now()
	defer func() {
		recordSelect(time.Since(start).Seconds())
	}()

	rows, err := s.queryRawStmt.QueryContext(ctx, nodeID, since)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	points := make([]domain.Point, 0)
	for rows.Next() {
		var p domain.Point
		if err := rows.Scan(&p.Timestamp, &p.CPUPercent, &p.RAMPercent); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}

	return Downsample(points, r.TargetPoints()), nil
}

func (s *SQLiteStore) ListNodeIDs(ctx context.Context) ([]string, error) {
	if s.dbRO == nil {
		return nil, ErrStoreNotInitialized
	}

	rows, err := s.dbRO.QueryContext(ctx, nodeIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("error querying node ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning node id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return ids, nil
}

// Stats returns per-node row counts and time bounds, ordered by node id.
func (s *SQLiteStore) Stats(ctx context.Context) ([]domain.NodeStats, error) {
	if s.dbRO == nil {
		return nil, ErrStoreNotInitialized
	}

	rows, err := s.dbRO.QueryContext(ctx, statsSQL)
	if err != nil {
		return nil, fmt.Errorf("error querying stats: %w", err)
	}
	defer rows.Close()

	stats := make([]domain.NodeStats, 0)
	for rows.Next() {
		var st domain.NodeStats
		if err := rows.Scan(&st.NodeID, &st.Count, &st.Oldest, &st.Newest); err != nil {
			return nil, fmt.Errorf("error scanning stats row: %w", err)
		}
		stats = append(stats, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return stats, nil
}

// DBSize returns the on-disk size of the main database file in bytes.
func (s *SQLiteStore) DBSize(ctx context.Context) (uint64, error) {
	if s.dbRO == nil {
		return 0, ErrStoreNotInitialized
	}

	var pageCount, pageSize uint64
	if err := s.dbRO.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("error reading page count: %w", err)
	}
	if err := s.dbRO.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("error reading page size: %w", err)
	}
	return pageCount * pageSize, nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context) (int64, error) {
	if s.cleanupStmt == nil {
		return 0, ErrStoreNotInitialized
	}

	cutoff := s.now().Add(-domain.RetentionHorizon).UnixMilli()

	start := time.Now()
	rs, err := s.cleanupStmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error deleting old metrics: %w", err)
	}
	recordDelete(time.Since(start).Seconds())

	affected, err := rs.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted rows: %w", err)
	}
	return affected, nil
}

// Start sweeps expired samples once and then every cleanup interval until
// Stop is called. A failed sweep is logged and retried at the next tick.
func (s *SQLiteStore) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.sweep(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			s.sweep(ctx)
		}
	}()
}

func (s *SQLiteStore) sweep(ctx context.Context) {
	purged, err := s.Cleanup(ctx)
	if err != nil {
		// interrupted by Stop
		if ctx.Err() != nil {
			return
		}
		recordCleanupFailure()
		s.logger.Error("failed to purge old metrics", zap.Error(err))
		return
	}

	fields := []zap.Field{zap.Int64("purged", purged)}
	if size, err := s.DBSize(ctx); err == nil {
		fields = append(fields, zap.String("db_size", humanize.Bytes(size)))
	}
	s.logger.Info("purged old metrics", fields...)
}

func (s *SQLiteStore) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

func (s *SQLiteStore) Close() error {
	s.Stop()

	for _, stmt := range []*sql.Stmt{s.insertStmt, s.queryRawStmt, s.cleanupStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	var errs []error
	if s.dbRO != nil {
		errs = append(errs, s.dbRO.Close())
	}
	if s.dbRW != nil {
		errs = append(errs, s.dbRW.Close())
	}
	return errors.Join(errs...)
}

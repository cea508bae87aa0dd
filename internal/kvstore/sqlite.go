package kvstore

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

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB,
	writer     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteOptions configure OpenSQLite.
type SQLiteOptions struct {
	// PollEvery is how often the table is scanned for changes made by other
	// processes. Zero uses one second.
	PollEvery time.Duration
	Clock     clock.Clock
	Logger    *zap.Logger
}

// SQLite is a Backend stored in a single SQLite file. Processes sharing the
// file see each other's writes; change detection polls per-row versions.
type SQLite struct {
	db     *sql.DB
	writer string
	clock  clock.Clock
	every  time.Duration
	logger *zap.Logger

	notifier notifier

	mu      sync.Mutex
	seen    map[string]int64
	polling bool
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}

	if opts.PollEvery <= 0 {
		opts.PollEvery = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &SQLite{
		db:     db,
		writer: uuid.NewString(),
		clock:  opts.Clock,
		every:  opts.PollEvery,
		logger: opts.Logger,
	}
	seen, err := s.versions(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.seen = seen
	return s, nil
}

// Name implements Backend.
func (s *SQLite) Name() string { return "sqlite" }

// Writer identifies this context.
func (s *SQLite) Writer() string { return s.writer }

// Get implements Backend. Deleted rows are kept as NULL tombstones so other
// processes notice the removal.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s: %w", key, err)
	}
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements Backend.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.write(ctx, key, value)
}

// Delete implements Backend.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	return s.write(ctx, key, nil)
}

func (s *SQLite) write(ctx context.Context, key string, value any) error {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO kv (key, value, writer, version, updated_at) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   writer = excluded.writer,
		   version = kv.version + 1,
		   updated_at = excluded.updated_at
		 RETURNING version`,
		key, value, s.writer, s.clock.Now().UTC().UnixMilli(),
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	s.mu.Lock()
	if version > s.seen[key] {
		s.seen[key] = version
	}
	s.mu.Unlock()
	return nil
}

// Subscribe implements Backend. The poller starts with the first subscriber.
func (s *SQLite) Subscribe(fn func(key string)) func() {
	cancel := s.notifier.subscribe(fn)
	s.mu.Lock()
	if !s.polling && !s.closed {
		s.polling = true
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.poll(s.stop, s.done)
	}
	s.mu.Unlock()
	return cancel
}

func (s *SQLite) poll(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := s.clock.Ticker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Poll(context.Background())
		}
	}
}

// Poll scans once for rows changed by other writers and announces them.
func (s *SQLite) Poll(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, version, writer FROM kv`)
	if err != nil {
		s.logger.Warn("poll kv table", zap.Error(err))
		return
	}
	var changed []string
	s.mu.Lock()
	for rows.Next() {
		var (
			key     string
			version int64
			writer  string
		)
		if err := rows.Scan(&key, &version, &writer); err != nil {
			s.logger.Warn("scan kv row", zap.Error(err))
			continue
		}
		if version == s.seen[key] {
			continue
		}
		s.seen[key] = version
		if writer != s.writer {
			changed = append(changed, key)
		}
	}
	s.mu.Unlock()
	if err := rows.Err(); err != nil {
		s.logger.Warn("iterate kv rows", zap.Error(err))
	}
	_ = rows.Close()

	for _, key := range changed {
		s.notifier.publish(key)
	}
}

func (s *SQLite) versions(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, version FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("read versions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var version int64
		if err := rows.Scan(&key, &version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out[key] = version
	}
	return out, rows.Err()
}

// Close stops the poller and closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	s.notifier.close()
	return s.db.Close()
}

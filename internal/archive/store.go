// Package archive persists the traffic log to a DuckDB capture file so long
// bench sessions can be analyzed after the in-memory buffer has evicted old
// entries. The in-memory buffer stays canonical for display and export; the
// archive is query-only history.
package archive

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/models"
)

const (
	batchSize     = 512
	flushInterval = 2 * time.Second
)

// Store is a DuckDB-backed capture of log entries. Appends are batched
// through the native Appender; queries flush pending rows first so a search
// always sees everything appended before it.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger

	mu      sync.Mutex
	batch   []models.LogEntry
	started bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// limits concurrent queries so a burst of archive requests cannot
	// starve the capture path
	querySem chan struct{}
}

// Open creates a fresh capture file under dataDir, named for the service
// start time.
func Open(dataDir string, logger *zap.Logger) (*Store, error) {
	name := fmt.Sprintf("capture_%s.duckdb", time.Now().Format("20060102_150405"))
	return OpenAtPath(filepath.Join(dataDir, name), logger)
}

// OpenAtPath creates or reopens a capture file at an explicit path.
func OpenAtPath(dbPath string, logger *zap.Logger) (*Store, error) {
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			seq  BIGINT NOT NULL,
			ts   BIGINT NOT NULL,
			tag  VARCHAR NOT NULL,
			line VARCHAR NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create entries table: %w", err)
	}
	// Entries trickle in rather than bulk-load, so the time index goes in up
	// front instead of after the fact.
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create time index: %w", err)
	}

	logger.Info("capture archive opened", zap.String("path", dbPath))

	return &Store{
		db:       db,
		dbPath:   dbPath,
		logger:   logger,
		batch:    make([]models.LogEntry, 0, batchSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		querySem: make(chan struct{}, 3),
	}, nil
}

// Path returns the capture file location.
func (s *Store) Path() string {
	return s.dbPath
}

// Start consumes entries from ch until the channel closes or the store is
// closed. Batches flush when full and on a timer.
func (s *Store) Start(ch <-chan models.LogEntry) {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				s.Add(e)
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					s.logger.Warn("archive flush failed", zap.Error(err))
				}
			}
		}
	}()
}

// Add buffers one entry for the next batch write.
func (s *Store) Add(e models.LogEntry) {
	s.mu.Lock()
	s.batch = append(s.batch, e)
	full := len(s.batch) >= batchSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.logger.Warn("archive flush failed", zap.Error(err))
		}
	}
}

// Flush writes the pending batch through the native Appender.
func (s *Store) Flush() error {
	s.mu.Lock()
	if len(s.batch) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.batch
	s.batch = make([]models.LogEntry, 0, batchSize)
	s.mu.Unlock()

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type %T", driverConn)
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", "entries")
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for _, e := range batch {
			if err := appender.AppendRow(
				int64(e.Seq),
				e.Timestamp.UnixMilli(),
				string(e.Tag),
				e.Text,
			); err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// Query filters an archive search. Zero values leave a dimension open.
type Query struct {
	From     int64         // Unix ms, inclusive
	To       int64         // Unix ms, inclusive
	Tag      models.LogTag // exact tag
	Contains string        // case-insensitive substring
}

func (q Query) whereClause() (string, []interface{}) {
	var conds []string
	var args []interface{}
	if q.From > 0 {
		conds = append(conds, "ts >= ?")
		args = append(args, q.From)
	}
	if q.To > 0 {
		conds = append(conds, "ts <= ?")
		args = append(args, q.To)
	}
	if q.Tag != "" {
		conds = append(conds, "tag = ?")
		args = append(args, string(q.Tag))
	}
	if q.Contains != "" {
		conds = append(conds, "LOWER(line) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Contains)+"%")
	}
	return strings.Join(conds, " AND "), args
}

// Search returns matching entries in seq order plus the total match count.
func (s *Store) Search(ctx context.Context, q Query, page, pageSize int) ([]models.LogEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	if pageSize > 1000 {
		pageSize = 1000
	}

	select {
	case s.querySem <- struct{}{}:
		defer func() { <-s.querySem }()
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}

	// Make rows appended before this call visible to it.
	if err := s.Flush(); err != nil {
		return nil, 0, err
	}

	where, args := q.whereClause()

	countQuery := "SELECT COUNT(*) FROM entries"
	if where != "" {
		countQuery += " WHERE " + where
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}
	if total == 0 {
		return []models.LogEntry{}, 0, nil
	}

	query := "SELECT seq, ts, tag, line FROM entries"
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY seq LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("entries query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LogEntry, 0, pageSize)
	for rows.Next() {
		var (
			seq, ts   int64
			tag, line string
		)
		if err := rows.Scan(&seq, &ts, &tag, &line); err != nil {
			return nil, 0, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, models.LogEntry{
			Seq:       uint64(seq),
			Timestamp: time.UnixMilli(ts),
			Text:      line,
			Tag:       models.LogTag(tag),
		})
	}
	return entries, total, rows.Err()
}

// Close stops the capture goroutine, flushes what remains, and closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	if started {
		<-s.done
	}

	flushErr := s.Flush()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return flushErr
}

package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/virtualmethods/vm"
)

const (
	driverName = "sqlite"
	batchSize  = 256
)

var ErrClosed = errors.New("trace store closed")

// Store writes dispatch events for one session to a SQLite database.
// Events are buffered and written in batches; Flush, Events, Summary and
// Close write any pending events first.
type Store struct {
	path    string
	session string
	db      *sql.DB

	mu      sync.Mutex
	pending []vm.Event
	err     error
	closed  bool
}

// Summary is one row of Store.Summary.
type Summary struct {
	Shape   vm.Shape
	Binding vm.Binding
	Name    string
	Count   int
}

// Session is one row of Store.Sessions.
type Session struct {
	ID     string
	Events int
}

// Open opens (creating if needed) the trace database at path. Events
// recorded through the returned Store are filed under session; an empty
// session gets a fresh UUID.
func Open(path, session string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("trace database path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("trace database %q is a directory, expected file", cleanPath)
	}
	if dir := filepath.Dir(cleanPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trace directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open trace database %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping trace database %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize trace schema %q: %w", cleanPath, err)
	}

	if session == "" {
		session = uuid.NewString()
	}
	log.Infof("trace session %s in %s", session, cleanPath)
	return &Store{path: cleanPath, session: session, db: db}, nil
}

// Session returns the session ID events are recorded under.
func (s *Store) Session() string { return s.session }

// Path returns the database path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record implements vm.Tracer. A write failure is kept and reported by Err;
// later events are dropped.
func (s *Store) Record(e vm.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	s.pending = append(s.pending, e)
	if len(s.pending) >= batchSize {
		s.err = s.flushLocked()
	}
}

// Err returns the first write error seen by Record.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Flush writes pending events.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	s.err = s.flushLocked()
	return s.err
}

func (s *Store) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin trace batch: %w", err)
	}
	stmt, err := tx.Prepare(`
INSERT INTO dispatch_events (
  session, seq, shape, name, caller_class, caller_method, receiver_class, target_class, binding
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare trace insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range s.pending {
		if _, err := stmt.Exec(
			s.session,
			int64(e.Seq),
			e.Shape.String(),
			e.Name,
			e.CallerClass,
			e.CallerMethod,
			e.ReceiverClass,
			e.TargetClass,
			e.Binding.String(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert trace event %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trace batch: %w", err)
	}
	log.Debugf("wrote %d trace events", len(s.pending))
	s.pending = s.pending[:0]
	return nil
}

// Events returns the events recorded under session in sequence order. An
// empty session selects the store's own.
func (s *Store) Events(session string) ([]vm.Event, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	if session == "" {
		session = s.session
	}

	rows, err := s.db.Query(`
SELECT seq, shape, name, caller_class, caller_method, receiver_class, target_class, binding
FROM dispatch_events
WHERE session = ?
ORDER BY seq ASC, id ASC`, session)
	if err != nil {
		return nil, fmt.Errorf("query trace events: %w", err)
	}
	defer rows.Close()

	var events []vm.Event
	for rows.Next() {
		var (
			e              vm.Event
			seq            int64
			shape, binding string
		)
		if err := rows.Scan(&seq, &shape, &e.Name, &e.CallerClass, &e.CallerMethod,
			&e.ReceiverClass, &e.TargetClass, &binding); err != nil {
			return nil, fmt.Errorf("scan trace event: %w", err)
		}
		e.Seq = uint64(seq)
		if e.Shape, err = parseShape(shape); err != nil {
			return nil, err
		}
		if e.Binding, err = parseBinding(binding); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace events: %w", err)
	}
	return events, nil
}

// Summary counts the events of session grouped by shape, binding and name.
func (s *Store) Summary(session string) ([]Summary, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	if session == "" {
		session = s.session
	}

	rows, err := s.db.Query(`
SELECT shape, binding, name, COUNT(*)
FROM dispatch_events
WHERE session = ?
GROUP BY shape, binding, name
ORDER BY shape ASC, binding ASC, name ASC`, session)
	if err != nil {
		return nil, fmt.Errorf("query trace summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			row            Summary
			shape, binding string
		)
		if err := rows.Scan(&shape, &binding, &row.Name, &row.Count); err != nil {
			return nil, fmt.Errorf("scan trace summary: %w", err)
		}
		if row.Shape, err = parseShape(shape); err != nil {
			return nil, err
		}
		if row.Binding, err = parseBinding(binding); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace summary: %w", err)
	}
	return out, nil
}

// Sessions lists every session in the database, oldest first.
func (s *Store) Sessions() ([]Session, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
SELECT session, COUNT(*)
FROM dispatch_events
GROUP BY session
ORDER BY MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("query trace sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var row Session
		if err := rows.Scan(&row.ID, &row.Events); err != nil {
			return nil, fmt.Errorf("scan trace session: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace sessions: %w", err)
	}
	return out, nil
}

// Close writes pending events and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var flushErr error
	if s.err == nil {
		flushErr = s.flushLocked()
	}
	return errors.Join(flushErr, s.db.Close())
}

func parseShape(s string) (vm.Shape, error) {
	shape, ok := vm.ParseShape(s)
	if !ok {
		return 0, fmt.Errorf("unknown shape %q in trace database", s)
	}
	return shape, nil
}

func parseBinding(s string) (vm.Binding, error) {
	b, ok := vm.ParseBinding(s)
	if !ok {
		return 0, fmt.Errorf("unknown binding %q in trace database", s)
	}
	return b, nil
}

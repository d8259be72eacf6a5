// Package store persists finalized sign results to a SQLite journal so the
// signs seen on a drive can be reviewed after the session has ended.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/roadsight/signtrack/logging"
	"github.com/roadsight/signtrack/tracker"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session      TEXT    NOT NULL,
	tracker_id   INTEGER NOT NULL,
	label        TEXT    NOT NULL,
	votes        INTEGER NOT NULL,
	target       INTEGER NOT NULL,
	center_x     INTEGER NOT NULL,
	center_y     INTEGER NOT NULL,
	finalized_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_session ON results(session);
CREATE INDEX IF NOT EXISTS idx_results_finalized ON results(finalized_at);
`

// Entry is a single finalized sign recorded in the journal.
type Entry struct {
	ID          int64     `json:"id"`
	Session     string    `json:"session"`
	TrackerID   int       `json:"tracker_id"`
	Label       string    `json:"label"`
	Votes       int       `json:"votes"`
	Target      int       `json:"target"`
	CenterX     int       `json:"center_x"`
	CenterY     int       `json:"center_y"`
	FinalizedAt time.Time `json:"finalized_at"`
}

// Journal records finalized signs for one session.
type Journal struct {
	db      *sql.DB
	path    string
	session string
	log     *slog.Logger
}

// Open initializes or connects to the journal database at path.  The parent
// directory must already exist.  An empty session is replaced by a random
// UUID.
func Open(path, session string, logger *slog.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is empty")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if session == "" {
		session = uuid.NewString()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Journal{
		db:      db,
		path:    path,
		session: session,
		log:     logger.With("component", "journal", "session", session),
	}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns the session ID rows are recorded under.
func (j *Journal) Session() string {
	return j.session
}

// Path returns the database file location.
func (j *Journal) Path() string {
	return j.path
}

// Record inserts a finalized sign.  Snapshots without a result are ignored.
func (j *Journal) Record(ctx context.Context, snap tracker.Snapshot) error {
	if !snap.Complete || snap.Result == "" {
		return nil
	}

	finalized := snap.LastSeen
	if finalized.IsZero() {
		finalized = time.Now()
	}

	err := retryOnBusy(ensureContext(ctx), func() error {
		_, err := j.db.ExecContext(ensureContext(ctx),
			`INSERT INTO results (session, tracker_id, label, votes, target, center_x, center_y, finalized_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			j.session, snap.ID, snap.Result, snap.Votes, snap.Target,
			snap.Center.X, snap.Center.Y, finalized.UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("record sign %d: %w", snap.ID, err)
	}
	return nil
}

// Hook returns a function suitable for the registry OnFinalize option.
// Failures are logged since the frame loop cannot act on them.
func (j *Journal) Hook() func(tracker.Snapshot) {
	return func(snap tracker.Snapshot) {
		if err := j.Record(context.Background(), snap); err != nil {
			j.log.Warn("journal write failed", "tracker_id", snap.ID, "error", err)
			return
		}
		j.log.Debug("sign recorded", "tracker_id", snap.ID, "label", snap.Result)
	}
}

// Recent returns up to limit entries across all sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return j.query(ctx, `SELECT id, session, tracker_id, label, votes, target, center_x, center_y, finalized_at
		FROM results ORDER BY finalized_at DESC, id DESC LIMIT ?`, normalizeLimit(limit))
}

// SessionEntries returns the entries of the current session in the order
// they were finalized.  The session ID of the Journal may be a prefix, as
// shown by the history listing.
func (j *Journal) SessionEntries(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, `SELECT id, session, tracker_id, label, votes, target, center_x, center_y, finalized_at
		FROM results WHERE substr(session, 1, ?) = ? ORDER BY finalized_at, id`,
		len(j.session), j.session)
}

// Counts returns the number of times each label was recorded across all
// sessions.
func (j *Journal) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ensureContext(ctx),
		`SELECT label, COUNT(*) FROM results GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan label count: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Session, &e.TrackerID, &e.Label, &e.Votes,
			&e.Target, &e.CenterX, &e.CenterY, &ms); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.FinalizedAt = time.UnixMilli(ms).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

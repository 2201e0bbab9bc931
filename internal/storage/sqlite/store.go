// Package sqlite provides the SQLite-backed ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/gamenight/internal/dependencies/clock"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage"
	"github.com/mcoot/gamenight/internal/storage/sqlite/migrations"
)

const scheduleTextKey = "schedule_text"

// Store persists the ledger in SQLite
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

// Ensure Store implements the interface
var _ storage.Ledger = (*Store)(nil)

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path, applies the embedded migrations and seeds
// the schedule text
func Open(ctx context.Context, path string, clk clock.Clock) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers so the ledger transactions
	// never hit SQLITE_BUSY against each other.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		scheduleTextKey, storage.DefaultScheduleText,
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed schedule text: %w", err)
	}
	return &Store{db: db, clock: clk}, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Person operations

func (s *Store) UpsertPerson(ctx context.Context, person *model.Person) error {
	now := toMillis(s.clock.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO people (id, first_name, last_name, nickname, age, handle, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   first_name = excluded.first_name,
		   last_name = excluded.last_name,
		   nickname = excluded.nickname,
		   age = excluded.age,
		   handle = excluded.handle,
		   updated_at = excluded.updated_at`,
		int64(person.ID), person.FirstName, person.LastName, person.Nickname,
		person.Age, person.Handle, now, now,
	)
	return model.Unavailable("upsert person", err)
}

const personColumns = `id, first_name, last_name, nickname, age, handle, created_at, updated_at`

func (s *Store) GetPerson(ctx context.Context, id model.PersonID) (*model.Person, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM people WHERE id = ?`, int64(id))
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPersonNotFound
	}
	if err != nil {
		return nil, model.Unavailable("get person", err)
	}
	return p, nil
}

func (s *Store) ListPeople(ctx context.Context) ([]*model.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM people ORDER BY id`)
	if err != nil {
		return nil, model.Unavailable("list people", err)
	}
	defer rows.Close()

	var people []*model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, model.Unavailable("scan person", err)
		}
		people = append(people, p)
	}
	return people, model.Unavailable("list people", rows.Err())
}

// Session operations

func (s *Store) CreateSession(ctx context.Context, kind model.SessionKind, dateLabel string) (*model.Session, error) {
	now := s.clock.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (kind, date_label, lifecycle, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), dateLabel, string(model.LifecycleActive), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrSessionConflict
		}
		return nil, model.Unavailable("create session", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, model.Unavailable("create session", err)
	}
	return &model.Session{
		ID:        model.SessionID(id),
		Kind:      kind,
		DateLabel: dateLabel,
		Lifecycle: model.LifecycleActive,
		CreatedAt: fromMillis(toMillis(now)),
	}, nil
}

const sessionColumns = `id, kind, date_label, lifecycle, created_at`

func (s *Store) GetSession(ctx context.Context, id model.SessionID) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, int64(id))
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, model.Unavailable("get session", err)
	}
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	switch filter {
	case model.FilterActive:
		query += ` WHERE lifecycle = ?`
		args = append(args, string(model.LifecycleActive))
	case model.FilterArchived:
		query += ` WHERE lifecycle = ?`
		args = append(args, string(model.LifecycleArchived))
	}
	query += ` ORDER BY id`
	return s.querySessions(ctx, "list sessions", query, args...)
}

func (s *Store) ArchiveSession(ctx context.Context, id model.SessionID) error {
	return s.setLifecycle(ctx, "archive session", id, model.LifecycleArchived)
}

func (s *Store) RestoreSession(ctx context.Context, id model.SessionID) error {
	return s.setLifecycle(ctx, "restore session", id, model.LifecycleActive)
}

func (s *Store) setLifecycle(ctx context.Context, op string, id model.SessionID, lifecycle model.Lifecycle) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET lifecycle = ? WHERE id = ?`,
		string(lifecycle), int64(id),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrSessionConflict
		}
		return model.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Unavailable(op, err)
	}
	if n == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteSessionCascade(ctx context.Context, id model.SessionID) ([]model.PersonID, error) {
	var registered []model.PersonID
	err := s.withTx(ctx, "delete session", func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, id); err != nil {
			return err
		}
		var err error
		registered, err = registeredIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM thinking WHERE session_id = ?`,
			`DELETE FROM registrations WHERE session_id = ?`,
			`DELETE FROM sessions WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, int64(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registered, nil
}

// Registration operations

func (s *Store) Register(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error {
	return s.withTx(ctx, "register", func(tx *sql.Tx) error {
		if err := pairExists(ctx, tx, personID, sessionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM thinking WHERE person_id = ? AND session_id = ?`,
			int64(personID), int64(sessionID),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO registrations (person_id, session_id, status, registered_at) VALUES (?, ?, ?, ?)`,
			int64(personID), int64(sessionID), string(model.StatusRegistered), toMillis(s.clock.Now()),
		)
		return err
	})
}

func (s *Store) CancelRegistration(ctx context.Context, personID model.PersonID, sessionID model.SessionID) error {
	return s.withTx(ctx, "cancel registration", func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM thinking WHERE person_id = ? AND session_id = ?`,
			`DELETE FROM registrations WHERE person_id = ? AND session_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, int64(personID), int64(sessionID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) MarkThinking(ctx context.Context, personID model.PersonID, sessionID model.SessionID) (bool, error) {
	recorded := false
	err := s.withTx(ctx, "mark thinking", func(tx *sql.Tx) error {
		if err := pairExists(ctx, tx, personID, sessionID); err != nil {
			return err
		}
		var found int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM registrations WHERE person_id = ? AND session_id = ?`,
			int64(personID), int64(sessionID),
		).Scan(&found)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO thinking (person_id, session_id, marked_at) VALUES (?, ?, ?)`,
			int64(personID), int64(sessionID), toMillis(s.clock.Now()),
		); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	return recorded, err
}

func (s *Store) ListParticipants(ctx context.Context, sessionID model.SessionID) ([]model.Participant, error) {
	var participants []model.Participant
	err := s.withTx(ctx, "list participants", func(tx *sql.Tx) error {
		if err := sessionExists(ctx, tx, sessionID); err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT p.id, p.first_name, p.last_name, p.nickname, p.age, p.handle, p.created_at, p.updated_at, 'registered', r.seq
			   FROM registrations r JOIN people p ON p.id = r.person_id
			  WHERE r.session_id = ?
			 UNION ALL
			 SELECT p.id, p.first_name, p.last_name, p.nickname, p.age, p.handle, p.created_at, p.updated_at, 'thinking', t.seq
			   FROM thinking t JOIN people p ON p.id = t.person_id
			  WHERE t.session_id = ?
			    AND NOT EXISTS (SELECT 1 FROM registrations r2 WHERE r2.person_id = t.person_id AND r2.session_id = t.session_id)
			 ORDER BY 9, 10`,
			int64(sessionID), int64(sessionID),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				p       model.Person
				id      int64
				created int64
				updated int64
				tag     string
				seq     int64
			)
			if err := rows.Scan(&id, &p.FirstName, &p.LastName, &p.Nickname, &p.Age, &p.Handle, &created, &updated, &tag, &seq); err != nil {
				return err
			}
			p.ID = model.PersonID(id)
			p.CreatedAt = fromMillis(created)
			p.UpdatedAt = fromMillis(updated)
			participants = append(participants, model.Participant{Person: p, Tag: model.ParticipantTag(tag)})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Store) ListSessionsForPerson(ctx context.Context, personID model.PersonID) ([]*model.Session, error) {
	return s.querySessions(ctx, "list sessions for person",
		`SELECT s.id, s.kind, s.date_label, s.lifecycle, s.created_at
		   FROM sessions s JOIN registrations r ON r.session_id = s.id
		  WHERE r.person_id = ? AND s.lifecycle = ?
		  ORDER BY s.id`,
		int64(personID), string(model.LifecycleActive),
	)
}

func (s *Store) SelectAudience(ctx context.Context, criterion model.AudienceCriterion, sessionID model.SessionID) ([]model.PersonID, error) {
	if criterion == model.AudienceAll {
		return s.queryIDs(ctx, "select audience", `SELECT id FROM people ORDER BY id`)
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	switch criterion {
	case model.AudienceRegistered:
		return s.queryIDs(ctx, "select audience",
			`SELECT person_id FROM registrations WHERE session_id = ? ORDER BY seq`, int64(sessionID))
	case model.AudienceNotRegistered:
		return s.queryIDs(ctx, "select audience",
			`SELECT id FROM people
			  WHERE id NOT IN (SELECT person_id FROM registrations WHERE session_id = ?)
			  ORDER BY id`, int64(sessionID))
	default:
		return nil, model.ErrUnknownAudience
	}
}

// Schedule text operations

func (s *Store) GetScheduleText(ctx context.Context) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, scheduleTextKey).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.DefaultScheduleText, nil
	}
	if err != nil {
		return "", model.Unavailable("get schedule text", err)
	}
	return text, nil
}

func (s *Store) SetScheduleText(ctx context.Context, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		scheduleTextKey, text,
	)
	return model.Unavailable("set schedule text", err)
}

// helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*model.Person, error) {
	var (
		p       model.Person
		id      int64
		created int64
		updated int64
	)
	if err := row.Scan(&id, &p.FirstName, &p.LastName, &p.Nickname, &p.Age, &p.Handle, &created, &updated); err != nil {
		return nil, err
	}
	p.ID = model.PersonID(id)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func scanSession(row scanner) (*model.Session, error) {
	var (
		session   model.Session
		id        int64
		kind      string
		lifecycle string
		created   int64
	)
	if err := row.Scan(&id, &kind, &session.DateLabel, &lifecycle, &created); err != nil {
		return nil, err
	}
	session.ID = model.SessionID(id)
	session.Kind = model.SessionKind(kind)
	session.Lifecycle = model.Lifecycle(lifecycle)
	session.CreatedAt = fromMillis(created)
	return &session, nil
}

func (s *Store) querySessions(ctx context.Context, op, query string, args ...any) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Unavailable(op, err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, model.Unavailable(op, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, model.Unavailable(op, rows.Err())
}

func (s *Store) queryIDs(ctx context.Context, op, query string, args ...any) ([]model.PersonID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.Unavailable(op, err)
	}
	defer rows.Close()

	ids := []model.PersonID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, model.Unavailable(op, err)
		}
		ids = append(ids, model.PersonID(id))
	}
	return ids, model.Unavailable(op, rows.Err())
}

// withTx runs fn in a transaction. Ledger sentinels returned by fn pass
// through unchanged; anything else is reported as storage unavailable.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		if isLedgerError(err) {
			return err
		}
		return model.Unavailable(op, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Unavailable(op, err)
	}
	return nil
}

func isLedgerError(err error) bool {
	return errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrConflict) ||
		errors.Is(err, model.ErrValidation)
}

func sessionExists(ctx context.Context, tx *sql.Tx, id model.SessionID) error {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, int64(id)).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrSessionNotFound
	}
	return err
}

func pairExists(ctx context.Context, tx *sql.Tx, personID model.PersonID, sessionID model.SessionID) error {
	var found int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM people WHERE id = ?`, int64(personID)).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPersonNotFound
	}
	if err != nil {
		return err
	}
	return sessionExists(ctx, tx, sessionID)
}

func registeredIDs(ctx context.Context, tx *sql.Tx, sessionID model.SessionID) ([]model.PersonID, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT person_id FROM registrations WHERE session_id = ? ORDER BY seq`, int64(sessionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []model.PersonID{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, model.PersonID(id))
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

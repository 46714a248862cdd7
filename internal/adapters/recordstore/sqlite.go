package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"

	"github.com/veloclub/sortie/internal/domain/model"
)

// SQLiteStore implements Store on a single SQLite file. Attendance date
// sets and entry maps are stored as JSON columns; the store is a plain
// record store, so nothing ever queries inside them.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use ":memory:"
// for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		grp TEXT NOT NULL DEFAULT '',
		participation_count INTEGER NOT NULL DEFAULT 0,
		attended_dates TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		iso_date TEXT NOT NULL UNIQUE,
		location TEXT NOT NULL DEFAULT '',
		distance TEXT NOT NULL DEFAULT '',
		meeting_time TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		from_import INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS attendance (
		event_id TEXT PRIMARY KEY,
		iso_date TEXT NOT NULL,
		entries TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_events_iso_date ON events(iso_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, grp, participation_count, attended_dates FROM members ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(r rowScanner) (model.Member, error) {
	var m model.Member
	var dates string
	if err := r.Scan(&m.ID, &m.Name, &m.Group, &m.ParticipationCount, &dates); err != nil {
		return model.Member{}, err
	}
	if err := json.Unmarshal([]byte(dates), &m.AttendedDates); err != nil {
		return model.Member{}, fmt.Errorf("decode attended_dates for %s: %w", m.ID, err)
	}
	return m, nil
}

func (s *SQLiteStore) GetMember(ctx context.Context, id string) (model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, grp, participation_count, attended_dates FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Member{}, ErrNotFound
	}
	return m, err
}

func (s *SQLiteStore) CreateMember(ctx context.Context, m *model.Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.ParticipationCount = len(m.AttendedDates)
	dates, err := encodeDates(m.AttendedDates)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO members (id, name, grp, participation_count, attended_dates) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Group, m.ParticipationCount, dates)
	return err
}

func (s *SQLiteStore) UpdateMember(ctx context.Context, m *model.Member) error {
	dates, err := encodeDates(m.AttendedDates)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, grp = ?, participation_count = ?, attended_dates = ? WHERE id = ?`,
		m.Name, m.Group, m.ParticipationCount, dates, m.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteMember(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, iso_date, location, distance, meeting_time, address, from_import FROM events ORDER BY iso_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.ISODate, &e.Location, &e.Distance, &e.MeetingTime, &e.Address, &e.FromImport); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (model.Event, error) {
	var e model.Event
	err := s.db.QueryRowContext(ctx,
		`SELECT id, iso_date, location, distance, meeting_time, address, from_import FROM events WHERE id = ?`, id).
		Scan(&e.ID, &e.ISODate, &e.Location, &e.Distance, &e.MeetingTime, &e.Address, &e.FromImport)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return e, err
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM events WHERE iso_date = ?`, e.ISODate).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateDate
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, iso_date, location, distance, meeting_time, address, from_import) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ISODate, e.Location, e.Distance, e.MeetingTime, e.Address, e.FromImport)
	return err
}

func (s *SQLiteStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET iso_date = ?, location = ?, distance = ?, meeting_time = ?, address = ?, from_import = ? WHERE id = ?`,
		e.ISODate, e.Location, e.Distance, e.MeetingTime, e.Address, e.FromImport, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM attendance WHERE event_id = ?`, id)
	return err
}

func (s *SQLiteStore) GetAttendance(ctx context.Context, eventID string) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	var entries string
	err := s.db.QueryRowContext(ctx,
		`SELECT event_id, iso_date, entries FROM attendance WHERE event_id = ?`, eventID).
		Scan(&rec.EventID, &rec.ISODate, &entries)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceRecord{}, ErrNotFound
	}
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if err := json.Unmarshal([]byte(entries), &rec.Entries); err != nil {
		return model.AttendanceRecord{}, fmt.Errorf("decode entries for %s: %w", eventID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) PutAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	entries, err := json.Marshal(rec.Entries)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attendance (event_id, iso_date, entries) VALUES (?, ?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET iso_date = excluded.iso_date, entries = excluded.entries`,
		rec.EventID, rec.ISODate, string(entries))
	return err
}

func (s *SQLiteStore) DeleteAttendance(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attendance WHERE event_id = ?`, eventID)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeDates(dates []string) (string, error) {
	if dates == nil {
		dates = []string{}
	}
	b, err := json.Marshal(dates)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

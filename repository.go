package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Repository defines the interface for database operations.
type Repository interface {
	CreateTables() error
	CreateEvent(ev Event) (int64, error)
	DeleteEvent(id int64) error
	GetEvent(id int64) (*Event, error)
	ListOpenEvents(now int64) ([]Event, error)
	CountConfirmed(eventID int64) (adults, children int64, err error)
	ListRegistrations(eventID int64, waiting bool) ([]Registration, error)
	UserRegistrations(eventID, userID int64) ([]Registration, error)
	SetAttachment(eventID, userID int64, text string) error
	DueReminders(now int64) ([]ReminderRecord, error)
	MarkRemindersSent(now int64) error
	TakeDueReminders(now int64) ([]ReminderRecord, error)
	SweepPastEvents(now int64) error
	MostRecentRegistration(userID int64) (int64, error)
	AllRegistrations() ([]ExportRow, error)
	// InTx runs fn inside a transaction, committing on nil and rolling
	// back on error. The capacity engine uses it so a capacity read and
	// the following write cannot interleave with another sign-up.
	InTx(fn func(tx *sql.Tx) error) error
}

// querier is the common surface of *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// SQLiteRepository implements the Repository interface.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLiteRepository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateTables creates the events and reservations tables.
func (r *SQLiteRepository) CreateTables() error {
	eventTable := `CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL,
		remind INTEGER NOT NULL,
		max_adults INTEGER NOT NULL DEFAULT 0,
		max_children INTEGER NOT NULL DEFAULT 0,
		max_adults_per_reservation INTEGER NOT NULL DEFAULT 0,
		max_children_per_reservation INTEGER NOT NULL DEFAULT 0
	);`

	reservationTable := `CREATE TABLE IF NOT EXISTS reservations (
		event_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		user_name TEXT NOT NULL,
		user_handle TEXT NOT NULL DEFAULT '',
		adults INTEGER NOT NULL DEFAULT 0,
		children INTEGER NOT NULL DEFAULT 0,
		waiting INTEGER NOT NULL DEFAULT 0,
		joined_at INTEGER NOT NULL,
		attachment TEXT NOT NULL DEFAULT '',
		remind_sent INTEGER NOT NULL DEFAULT 0
	);`

	// One row per (event, user, category). adults/children are 0 or 1
	// and mutually exclusive, so the pair encodes the category.
	categoryIndex := `CREATE UNIQUE INDEX IF NOT EXISTS reservations_category
		ON reservations (event_id, user_id, adults, children);`

	for _, stmt := range []string{eventTable, reservationTable, categoryIndex} {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InTx runs fn inside a transaction.
func (r *SQLiteRepository) InTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateEvent inserts a new event and returns its assigned id.
func (r *SQLiteRepository) CreateEvent(ev Event) (int64, error) {
	if ev.MaxAdults < 0 || ev.MaxChildren < 0 ||
		ev.MaxAdultsPerReservation < 0 || ev.MaxChildrenPerReservation < 0 {
		return 0, fmt.Errorf("invalid event: negative capacity")
	}
	if ev.Remind > ev.Start {
		return 0, fmt.Errorf("invalid event: reminder after start")
	}
	res, err := r.db.Exec(
		`INSERT INTO events (name, link, ts, remind, max_adults, max_children,
			max_adults_per_reservation, max_children_per_reservation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.Name, ev.Link, ev.Start, ev.Remind, ev.MaxAdults, ev.MaxChildren,
		ev.MaxAdultsPerReservation, ev.MaxChildrenPerReservation)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DeleteEvent removes the event and all of its reservations. Deleting an
// absent event is not an error.
func (r *SQLiteRepository) DeleteEvent(id int64) error {
	return r.InTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM reservations WHERE event_id = ?", id); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM events WHERE id = ?", id)
		return err
	})
}

// GetEvent returns the event or nil when absent.
func (r *SQLiteRepository) GetEvent(id int64) (*Event, error) {
	return getEvent(r.db, id)
}

func getEvent(q querier, id int64) (*Event, error) {
	row := q.QueryRow(
		`SELECT id, name, link, ts, remind, max_adults, max_children,
			max_adults_per_reservation, max_children_per_reservation
		FROM events WHERE id = ?`, id)
	var ev Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.Link, &ev.Start, &ev.Remind,
		&ev.MaxAdults, &ev.MaxChildren,
		&ev.MaxAdultsPerReservation, &ev.MaxChildrenPerReservation)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

// ListOpenEvents returns events that have not started yet, earliest first.
func (r *SQLiteRepository) ListOpenEvents(now int64) ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT id, name, link, ts, remind, max_adults, max_children,
			max_adults_per_reservation, max_children_per_reservation
		FROM events WHERE ts > ? ORDER BY ts ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Link, &ev.Start, &ev.Remind,
			&ev.MaxAdults, &ev.MaxChildren,
			&ev.MaxAdultsPerReservation, &ev.MaxChildrenPerReservation); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountConfirmed sums the confirmed reservations by category.
func (r *SQLiteRepository) CountConfirmed(eventID int64) (int64, int64, error) {
	return countConfirmed(r.db, eventID)
}

func countConfirmed(q querier, eventID int64) (int64, int64, error) {
	row := q.QueryRow(
		`SELECT COALESCE(SUM(adults), 0), COALESCE(SUM(children), 0)
		FROM reservations WHERE event_id = ? AND waiting = 0`, eventID)
	var adults, children int64
	if err := row.Scan(&adults, &children); err != nil {
		return 0, 0, err
	}
	return adults, children, nil
}

const registrationColumns = `event_id, user_id, user_name, user_handle,
	adults, children, waiting, joined_at, attachment`

func scanRegistration(scan func(...interface{}) error) (Registration, error) {
	var reg Registration
	var waiting int64
	err := scan(&reg.EventID, &reg.UserID, &reg.UserName, &reg.UserHandle,
		&reg.Adults, &reg.Children, &waiting, &reg.JoinedAt, &reg.Attachment)
	reg.Waiting = waiting != 0
	return reg, err
}

// ListRegistrations returns the reservations of one event, confirmed or
// waiting. Waiting entries come back in FIFO order; rowid breaks ties
// between equal join timestamps, so the order is stable.
func (r *SQLiteRepository) ListRegistrations(eventID int64, waiting bool) ([]Registration, error) {
	w := 0
	if waiting {
		w = 1
	}
	rows, err := r.db.Query(
		`SELECT `+registrationColumns+` FROM reservations
		WHERE event_id = ? AND waiting = ? ORDER BY joined_at ASC, rowid ASC`,
		eventID, w)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// UserRegistrations returns the reservations one user holds for an event.
func (r *SQLiteRepository) UserRegistrations(eventID, userID int64) ([]Registration, error) {
	rows, err := r.db.Query(
		`SELECT `+registrationColumns+` FROM reservations
		WHERE event_id = ? AND user_id = ? ORDER BY adults DESC`,
		eventID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows.Scan)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func getRegistration(q querier, eventID, userID int64, adult bool) (*Registration, error) {
	row := q.QueryRow(
		`SELECT `+registrationColumns+` FROM reservations
		WHERE event_id = ? AND user_id = ? AND `+categoryClause(adult),
		eventID, userID)
	reg, err := scanRegistration(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

func categoryClause(adult bool) string {
	if adult {
		return "adults > 0"
	}
	return "children > 0"
}

func insertRegistration(q querier, reg Registration) error {
	w := 0
	if reg.Waiting {
		w = 1
	}
	_, err := q.Exec(
		`INSERT INTO reservations (event_id, user_id, user_name, user_handle,
			adults, children, waiting, joined_at, attachment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.EventID, reg.UserID, reg.UserName, reg.UserHandle,
		reg.Adults, reg.Children, w, reg.JoinedAt, reg.Attachment)
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: duplicate category row for user %d", ErrConflict, reg.UserID)
	}
	return err
}

func deleteRegistration(q querier, eventID, userID int64, adult bool) error {
	_, err := q.Exec(
		`DELETE FROM reservations WHERE event_id = ? AND user_id = ? AND `+categoryClause(adult),
		eventID, userID)
	return err
}

// promoteEarliest flips the oldest waiting entry of the category to
// confirmed and reports who moved up. Returns nil when the queue is empty.
func promoteEarliest(q querier, eventID int64, adult bool) (*Promotion, error) {
	row := q.QueryRow(
		`SELECT rowid, user_id, user_name FROM reservations
		WHERE event_id = ? AND waiting = 1 AND `+categoryClause(adult)+`
		ORDER BY joined_at ASC, rowid ASC LIMIT 1`, eventID)
	var rowid, userID int64
	var userName string
	err := row.Scan(&rowid, &userID, &userName)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if _, err := q.Exec("UPDATE reservations SET waiting = 0 WHERE rowid = ?", rowid); err != nil {
		return nil, err
	}
	return &Promotion{EventID: eventID, UserID: userID, UserName: userName}, nil
}

// SetAttachment attaches free text to the user's reservations for an event.
func (r *SQLiteRepository) SetAttachment(eventID, userID int64, text string) error {
	res, err := r.db.Exec(
		"UPDATE reservations SET attachment = ? WHERE event_id = ? AND user_id = ?",
		text, eventID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user %d has no reservation for event %d", ErrNotFound, userID, eventID)
	}
	return nil
}

// DueReminders returns one reminder per (event, user) for events whose
// reminder instant has passed and is not yet marked sent.
func (r *SQLiteRepository) DueReminders(now int64) ([]ReminderRecord, error) {
	return dueReminders(r.db, now)
}

func dueReminders(q querier, now int64) ([]ReminderRecord, error) {
	rows, err := q.Query(
		`SELECT r.event_id, r.user_id, e.name, e.link, e.ts
		FROM reservations r JOIN events e ON e.id = r.event_id
		WHERE e.remind <= ? AND r.remind_sent = 0
		GROUP BY r.event_id, r.user_id
		ORDER BY r.event_id, r.user_id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []ReminderRecord
	for rows.Next() {
		var rec ReminderRecord
		if err := rows.Scan(&rec.EventID, &rec.UserID, &rec.Name, &rec.Link, &rec.Start); err != nil {
			return nil, err
		}
		reminders = append(reminders, rec)
	}
	return reminders, rows.Err()
}

// MarkRemindersSent clears the due set selected by the same boundary as
// DueReminders, so a surfaced reminder never reappears.
func (r *SQLiteRepository) MarkRemindersSent(now int64) error {
	return markRemindersSent(r.db, now)
}

func markRemindersSent(q querier, now int64) error {
	_, err := q.Exec(
		`UPDATE reservations SET remind_sent = 1
		WHERE remind_sent = 0
		AND event_id IN (SELECT id FROM events WHERE remind <= ?)`, now)
	return err
}

// TakeDueReminders reads the due set and marks it sent in a single
// transaction, so a sign-up landing between the read and the mark is
// never marked sent without being surfaced. The scheduler delivers
// after commit: a reminder may be lost to a send failure but is never
// silently swallowed by the store.
func (r *SQLiteRepository) TakeDueReminders(now int64) ([]ReminderRecord, error) {
	var reminders []ReminderRecord
	err := r.InTx(func(tx *sql.Tx) error {
		var err error
		reminders, err = dueReminders(tx, now)
		if err != nil {
			return err
		}
		return markRemindersSent(tx, now)
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// SweepPastEvents deletes events, with their reservations, once the
// calendar day of the start instant is over.
func (r *SQLiteRepository) SweepPastEvents(now int64) error {
	return r.InTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM reservations WHERE event_id IN
				(SELECT id FROM events WHERE ts - ts % 86400 + 86400 <= ?)`, now); err != nil {
			return err
		}
		_, err := tx.Exec("DELETE FROM events WHERE ts - ts % 86400 + 86400 <= ?", now)
		return err
	})
}

// MostRecentRegistration returns the event of the user's latest
// reservation, or 0 when the user has none.
func (r *SQLiteRepository) MostRecentRegistration(userID int64) (int64, error) {
	row := r.db.QueryRow(
		`SELECT event_id FROM reservations WHERE user_id = ?
		ORDER BY joined_at DESC, rowid DESC LIMIT 1`, userID)
	var eventID int64
	err := row.Scan(&eventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return eventID, nil
}

// AllRegistrations retrieves every reservation with event details for the
// CSV export, newest events first.
func (r *SQLiteRepository) AllRegistrations() ([]ExportRow, error) {
	rows, err := r.db.Query(
		`SELECT r.event_id, r.user_id, r.user_name, r.user_handle,
			r.adults, r.children, r.waiting, r.joined_at, r.attachment,
			e.name, e.ts
		FROM reservations r JOIN events e ON e.id = r.event_id
		ORDER BY e.ts DESC, r.joined_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var export []ExportRow
	for rows.Next() {
		var row ExportRow
		var waiting int64
		if err := rows.Scan(&row.EventID, &row.UserID, &row.UserName, &row.UserHandle,
			&row.Adults, &row.Children, &waiting, &row.JoinedAt, &row.Attachment,
			&row.EventName, &row.EventStart); err != nil {
			return nil, err
		}
		row.Waiting = waiting != 0
		export = append(export, row)
	}
	return export, rows.Err()
}

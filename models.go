package main

// Event represents an event record.
type Event struct {
	ID                        int64  // ID is the unique identifier assigned by the store (0 means unset).
	Name                      string // Name is the event title.
	Link                      string // Link is an optional URL with event details.
	Start                     int64  // Start is the event start instant, unix seconds.
	Remind                    int64  // Remind is the reminder instant, unix seconds, must not be after Start.
	MaxAdults                 int64  // MaxAdults is the adult capacity.
	MaxChildren               int64  // MaxChildren is the child capacity.
	MaxAdultsPerReservation   int64  // MaxAdultsPerReservation caps adult units per user.
	MaxChildrenPerReservation int64  // MaxChildrenPerReservation caps child units per user.
}

// Registration represents one reservation row. A user holds at most one
// row per category (adult or child) per event.
type Registration struct {
	EventID    int64  // EventID is the event the reservation belongs to.
	UserID     int64  // UserID is the reserving user.
	UserName   string // UserName is the user's full name.
	UserHandle string // UserHandle is the user's handle, may be empty.
	Adults     int64  // Adults is 1 for an adult reservation, otherwise 0.
	Children   int64  // Children is 1 for a child reservation, otherwise 0.
	Waiting    bool   // Waiting marks a queued reservation that does not count against capacity.
	JoinedAt   int64  // JoinedAt is the sign-up instant, unix seconds; orders the waiting list.
	Attachment string // Attachment is an optional free-text note.
}

// ReminderRecord is a reminder owed to one user for one event.
type ReminderRecord struct {
	EventID int64
	UserID  int64
	Name    string
	Link    string
	Start   int64
}

// Promotion reports a waiting reservation that became confirmed after a
// slot freed up.
type Promotion struct {
	EventID  int64
	UserID   int64
	UserName string
}

// ExportRow extends Registration with event details for the CSV export.
type ExportRow struct {
	Registration
	EventName  string
	EventStart int64
}

// User identifies the acting user of an inbound action.
type User struct {
	ID     int64
	Name   string
	Handle string
}

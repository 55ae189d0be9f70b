package main

import (
	"database/sql"
	"fmt"
)

// CapacityEngine decides how a sign-up is admitted and who moves up from
// the waiting list when a slot frees. Every decision runs inside one
// store transaction so the capacity read and the following write cannot
// interleave with a concurrent sign-up for the same slot.
type CapacityEngine struct {
	repo Repository
}

// NewCapacityEngine creates a new CapacityEngine.
func NewCapacityEngine(repo Repository) *CapacityEngine {
	return &CapacityEngine{repo: repo}
}

// SignUp records a reservation of one category for the user. Exactly one
// of adults/children must be positive. The reservation is confirmed when
// the category still has a free slot, queued otherwise. A repeated
// sign-up for a category the user already holds refreshes the stored
// names but keeps the join timestamp and the waiting flag, so the queue
// position and the totals are unchanged.
func (e *CapacityEngine) SignUp(eventID int64, user User, adults, children int64, now int64) (waiting bool, err error) {
	if (adults > 0) == (children > 0) {
		return false, fmt.Errorf("%w: sign-up must be for exactly one category", ErrConflict)
	}
	adult := adults > 0

	err = e.repo.InTx(func(tx *sql.Tx) error {
		ev, err := getEvent(tx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrUnknownEvent
		}
		// A row holds at most one unit per category, and the
		// per-reservation cap bounds the request before any capacity
		// check.
		if adults > 1 || children > 1 ||
			adults > ev.MaxAdultsPerReservation || children > ev.MaxChildrenPerReservation {
			return ErrReservationLimit
		}

		existing, err := getRegistration(tx, eventID, user.ID, adult)
		if err != nil {
			return err
		}
		if existing != nil {
			waiting = existing.Waiting
			_, err := tx.Exec(
				`UPDATE reservations SET user_name = ?, user_handle = ?
				WHERE event_id = ? AND user_id = ? AND `+categoryClause(adult),
				user.Name, user.Handle, eventID, user.ID)
			return err
		}

		confAdults, confChildren, err := countConfirmed(tx, eventID)
		if err != nil {
			return err
		}
		if adult {
			waiting = confAdults+adults > ev.MaxAdults
		} else {
			waiting = confChildren+children > ev.MaxChildren
		}

		return insertRegistration(tx, Registration{
			EventID:    eventID,
			UserID:     user.ID,
			UserName:   user.Name,
			UserHandle: user.Handle,
			Adults:     adults,
			Children:   children,
			Waiting:    waiting,
			JoinedAt:   now,
		})
	})
	return waiting, err
}

// Cancel removes the user's reservation for one category. When the
// removed entry was confirmed, the earliest waiting entry of the same
// category is promoted and reported. Cancelling a reservation that does
// not exist is a no-op, so duplicate chat retransmissions stay harmless.
func (e *CapacityEngine) Cancel(eventID, userID int64, adult bool) (*Promotion, error) {
	var promoted *Promotion
	err := e.repo.InTx(func(tx *sql.Tx) error {
		ev, err := getEvent(tx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrUnknownEvent
		}
		reg, err := getRegistration(tx, eventID, userID, adult)
		if err != nil {
			return err
		}
		if reg == nil {
			return nil
		}
		if err := deleteRegistration(tx, eventID, userID, adult); err != nil {
			return err
		}
		// Removing a queued entry frees nothing.
		if reg.Waiting {
			return nil
		}
		promoted, err = promoteEarliest(tx, eventID, adult)
		return err
	})
	return promoted, err
}

// WontGo removes all of the user's reservations for the event and
// promotes per freed category, at most one user each.
func (e *CapacityEngine) WontGo(eventID, userID int64) ([]Promotion, error) {
	var promotions []Promotion
	err := e.repo.InTx(func(tx *sql.Tx) error {
		ev, err := getEvent(tx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return ErrUnknownEvent
		}
		for _, adult := range []bool{true, false} {
			reg, err := getRegistration(tx, eventID, userID, adult)
			if err != nil {
				return err
			}
			if reg == nil {
				continue
			}
			if err := deleteRegistration(tx, eventID, userID, adult); err != nil {
				return err
			}
			if reg.Waiting {
				continue
			}
			promoted, err := promoteEarliest(tx, eventID, adult)
			if err != nil {
				return err
			}
			if promoted != nil {
				promotions = append(promotions, *promoted)
			}
		}
		return nil
	})
	return promotions, err
}

package main

import (
	"errors"
	"testing"
)

func TestSignUpFillsThenQueues(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	ev := testEvent(2, 0)
	id := mustCreateEvent(t, repo, ev)

	if waiting := mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base); waiting {
		t.Error("first sign-up: got waiting, want confirmed")
	}
	if waiting := mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1); waiting {
		t.Error("second sign-up: got waiting, want confirmed")
	}
	if waiting := mustSignUp(t, engine, id, User{ID: 3, Name: "U3"}, true, base+2); !waiting {
		t.Error("third sign-up: got confirmed, want waiting")
	}

	adults, children, err := repo.CountConfirmed(id)
	if err != nil {
		t.Fatalf("count confirmed: %v", err)
	}
	if adults != 2 || children != 0 {
		t.Errorf("confirmed counts: got %d/%d, want 2/0", adults, children)
	}
}

func TestCancelPromotesEarliestWaiting(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(2, 0))

	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1)
	mustSignUp(t, engine, id, User{ID: 3, Name: "U3"}, true, base+2)
	mustSignUp(t, engine, id, User{ID: 4, Name: "U4"}, true, base+3)

	promoted, err := engine.Cancel(id, 1, true)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if promoted == nil || promoted.UserID != 3 {
		t.Fatalf("promotion: got %+v, want user 3", promoted)
	}

	adults, _, err := repo.CountConfirmed(id)
	if err != nil {
		t.Fatalf("count confirmed: %v", err)
	}
	if adults != 2 {
		t.Errorf("confirmed after promotion: got %d, want 2", adults)
	}
	waiting, err := repo.ListRegistrations(id, true)
	if err != nil {
		t.Fatalf("waiting list: %v", err)
	}
	if len(waiting) != 1 || waiting[0].UserID != 4 {
		t.Errorf("waiting list: got %+v, want only user 4", waiting)
	}
}

func TestCancelConfirmedWithEmptyWaitlist(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(2, 0))
	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)

	promoted, err := engine.Cancel(id, 1, true)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if promoted != nil {
		t.Errorf("promotion: got %+v, want nil", promoted)
	}
	adults, _, _ := repo.CountConfirmed(id)
	if adults != 0 {
		t.Errorf("confirmed after cancel: got %d, want 0", adults)
	}
}

func TestCancelWaitingDoesNotPromote(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(1, 0))

	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1)
	mustSignUp(t, engine, id, User{ID: 3, Name: "U3"}, true, base+2)

	promoted, err := engine.Cancel(id, 2, true)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if promoted != nil {
		t.Errorf("cancelling a waiting entry promoted %+v", promoted)
	}
	adults, _, _ := repo.CountConfirmed(id)
	if adults != 1 {
		t.Errorf("confirmed after waiting cancel: got %d, want 1", adults)
	}
	waiting, _ := repo.ListRegistrations(id, true)
	if len(waiting) != 1 || waiting[0].UserID != 3 {
		t.Errorf("waiting list: got %+v, want only user 3", waiting)
	}
}

func TestCancelMissingRegistrationIsNoop(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(2, 0))

	promoted, err := engine.Cancel(id, 42, true)
	if err != nil {
		t.Errorf("cancel without registration: %v", err)
	}
	if promoted != nil {
		t.Errorf("promotion: got %+v, want nil", promoted)
	}
}

func TestCancelUnknownEvent(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)

	if _, err := engine.Cancel(99, 1, true); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("cancel unknown event: got %v, want ErrUnknownEvent", err)
	}
}

func TestRepeatSignUpReplacesInPlace(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(1, 0))

	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1)
	mustSignUp(t, engine, id, User{ID: 3, Name: "U3"}, true, base+2)

	// User 2 signs up again much later. The entry is replaced, not
	// re-queued: position and totals stay the same.
	if waiting := mustSignUp(t, engine, id, User{ID: 2, Name: "U2 Renamed"}, true, base+1000); !waiting {
		t.Error("repeat sign-up: got confirmed, want waiting")
	}
	adults, _, _ := repo.CountConfirmed(id)
	if adults != 1 {
		t.Errorf("confirmed after repeat: got %d, want 1", adults)
	}
	waiting, err := repo.ListRegistrations(id, true)
	if err != nil {
		t.Fatalf("waiting list: %v", err)
	}
	if len(waiting) != 2 {
		t.Fatalf("waiting list length: got %d, want 2", len(waiting))
	}
	if waiting[0].UserID != 2 || waiting[0].JoinedAt != base+1 {
		t.Errorf("queue position lost: got %+v", waiting[0])
	}
	if waiting[0].UserName != "U2 Renamed" {
		t.Errorf("name not refreshed: got %q", waiting[0].UserName)
	}
}

func TestReservationLimit(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	ev := testEvent(10, 10)
	ev.MaxAdultsPerReservation = 1
	ev.MaxChildrenPerReservation = 0
	id := mustCreateEvent(t, repo, ev)

	// Two adult units in one request exceed the cap of 1.
	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 2, 0, base); !errors.Is(err, ErrReservationLimit) {
		t.Errorf("two adults with cap 1: got %v, want ErrReservationLimit", err)
	}
	// A zero cap shuts the category entirely.
	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 0, 1, base); !errors.Is(err, ErrReservationLimit) {
		t.Errorf("child with cap 0: got %v, want ErrReservationLimit", err)
	}
	// A single adult is fine.
	if waiting := mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base); waiting {
		t.Error("single adult: got waiting, want confirmed")
	}
}

func TestSignUpRejectsMultiUnitRows(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	// The per-reservation caps of 2 leave room on paper, but a row
	// holds at most one unit per category.
	id := mustCreateEvent(t, repo, testEvent(10, 10))

	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 2, 0, base); !errors.Is(err, ErrReservationLimit) {
		t.Errorf("two adult units: got %v, want ErrReservationLimit", err)
	}
	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 0, 2, base); !errors.Is(err, ErrReservationLimit) {
		t.Errorf("two child units: got %v, want ErrReservationLimit", err)
	}
	adults, children, err := repo.CountConfirmed(id)
	if err != nil {
		t.Fatalf("count confirmed: %v", err)
	}
	if adults != 0 || children != 0 {
		t.Errorf("rejected sign-up left rows behind: %d/%d", adults, children)
	}
}

func TestSignUpUnknownEvent(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)

	if _, err := engine.SignUp(99, User{ID: 1, Name: "U1"}, 1, 0, base); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("sign up unknown event: got %v, want ErrUnknownEvent", err)
	}
}

func TestSignUpRequiresExactlyOneCategory(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(5, 5))

	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 1, 1, base); !errors.Is(err, ErrConflict) {
		t.Errorf("both categories: got %v, want ErrConflict", err)
	}
	if _, err := engine.SignUp(id, User{ID: 1, Name: "U1"}, 0, 0, base); !errors.Is(err, ErrConflict) {
		t.Errorf("no category: got %v, want ErrConflict", err)
	}
}

func TestWontGoPromotesPerCategory(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(1, 1))

	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)
	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, false, base)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1)
	mustSignUp(t, engine, id, User{ID: 3, Name: "U3"}, false, base+2)

	promotions, err := engine.WontGo(id, 1)
	if err != nil {
		t.Fatalf("wontgo: %v", err)
	}
	if len(promotions) != 2 {
		t.Fatalf("promotions: got %d, want 2", len(promotions))
	}
	got := map[int64]bool{}
	for _, p := range promotions {
		got[p.UserID] = true
	}
	if !got[2] || !got[3] {
		t.Errorf("promoted users: got %+v, want users 2 and 3", promotions)
	}

	adults, children, _ := repo.CountConfirmed(id)
	if adults != 1 || children != 1 {
		t.Errorf("confirmed counts after wontgo: got %d/%d, want 1/1", adults, children)
	}
	waiting, _ := repo.ListRegistrations(id, true)
	if len(waiting) != 0 {
		t.Errorf("waiting list after wontgo: got %+v, want empty", waiting)
	}
}

func TestWontGoOfWaitingEntriesPromotesNobody(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	id := mustCreateEvent(t, repo, testEvent(1, 0))

	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base+1)

	promotions, err := engine.WontGo(id, 2)
	if err != nil {
		t.Fatalf("wontgo: %v", err)
	}
	if len(promotions) != 0 {
		t.Errorf("promotions: got %+v, want none", promotions)
	}
	adults, _, _ := repo.CountConfirmed(id)
	if adults != 1 {
		t.Errorf("confirmed count: got %d, want 1", adults)
	}
}

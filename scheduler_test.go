package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type sentMessage struct {
	UserID  int64
	Text    string
	Buttons []Button
}

// fakeNotifier records outbound notifications.
type fakeNotifier struct {
	sent []sentMessage
	fail bool
}

func (n *fakeNotifier) Notify(userID int64, text string, buttons ...Button) error {
	if n.fail {
		return errors.New("transport down")
	}
	n.sent = append(n.sent, sentMessage{UserID: userID, Text: text, Buttons: buttons})
	return nil
}

func (n *fakeNotifier) reset() { n.sent = nil }

func TestTickSendsRemindersOnce(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	notifier := &fakeNotifier{}
	scheduler := NewReminderScheduler(repo, notifier, time.Minute, zap.NewNop())

	ev := testEvent(1, 0)
	ev.Remind = base - 60
	id := mustCreateEvent(t, repo, ev)
	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base-300)
	mustSignUp(t, engine, id, User{ID: 2, Name: "U2"}, true, base-200)

	scheduler.Tick(base)
	if len(notifier.sent) != 2 {
		t.Fatalf("reminders sent: got %d, want 2", len(notifier.sent))
	}
	for _, msg := range notifier.sent {
		if !strings.Contains(msg.Text, "вы записались") {
			t.Errorf("reminder text: got %q", msg.Text)
		}
		if len(msg.Buttons) != 1 || !strings.HasPrefix(msg.Buttons[0].Action, "wontgo ") {
			t.Errorf("reminder buttons: got %+v", msg.Buttons)
		}
	}

	notifier.reset()
	scheduler.Tick(base + 1)
	if len(notifier.sent) != 0 {
		t.Errorf("second tick resent reminders: %+v", notifier.sent)
	}
}

func TestTickBeforeReminderInstant(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	notifier := &fakeNotifier{}
	scheduler := NewReminderScheduler(repo, notifier, time.Minute, zap.NewNop())

	id := mustCreateEvent(t, repo, testEvent(5, 0))
	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base)

	scheduler.Tick(base)
	if len(notifier.sent) != 0 {
		t.Errorf("premature reminders: %+v", notifier.sent)
	}
}

func TestTickMarksSentDespiteDeliveryFailure(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	notifier := &fakeNotifier{fail: true}
	scheduler := NewReminderScheduler(repo, notifier, time.Minute, zap.NewNop())

	ev := testEvent(5, 0)
	ev.Remind = base - 60
	id := mustCreateEvent(t, repo, ev)
	mustSignUp(t, engine, id, User{ID: 1, Name: "U1"}, true, base-300)

	scheduler.Tick(base)

	// A surfaced reminder is never retried, even when delivery failed.
	notifier.fail = false
	scheduler.Tick(base + 1)
	if len(notifier.sent) != 0 {
		t.Errorf("failed reminder was retried: %+v", notifier.sent)
	}
}

func TestTickSweepsElapsedEvents(t *testing.T) {
	repo := newTestRepo(t)
	engine := NewCapacityEngine(repo)
	notifier := &fakeNotifier{}
	scheduler := NewReminderScheduler(repo, notifier, time.Minute, zap.NewNop())

	old := testEvent(5, 0)
	old.Start = base
	old.Remind = base - 3600
	oldID := mustCreateEvent(t, repo, old)
	mustSignUp(t, engine, oldID, User{ID: 1, Name: "U1"}, true, base)

	future := testEvent(5, 0)
	future.Start = base + 3*86400
	futureID := mustCreateEvent(t, repo, future)

	midnight := base - base%86400 + 86400
	scheduler.Tick(midnight)

	if ev, _ := repo.GetEvent(oldID); ev != nil {
		t.Error("elapsed event not swept by tick")
	}
	if ev, _ := repo.GetEvent(futureID); ev == nil {
		t.Error("future event swept by tick")
	}
}

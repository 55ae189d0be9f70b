package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ReminderScheduler delivers due reminders on a fixed cadence and sweeps
// fully elapsed events. Every tick-level failure is logged and the loop
// moves on; a missed tick is simply caught up by the next one.
type ReminderScheduler struct {
	repo     Repository
	notifier Notifier
	interval time.Duration
	log      *zap.Logger
}

// NewReminderScheduler creates a new ReminderScheduler.
func NewReminderScheduler(repo Repository, notifier Notifier, interval time.Duration, log *zap.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		repo:     repo,
		notifier: notifier,
		interval: interval,
		log:      log,
	}
}

// Run ticks until the context is cancelled.
func (s *ReminderScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(unixNow())
		}
	}
}

// Tick performs one sweep: take the due reminders, deliver them, and
// delete events whose day is over. The due set is marked sent in the
// same store transaction that reads it, before any delivery. A
// reminder surfaced once must not reappear; duplicate spam is worse
// than a dropped message.
func (s *ReminderScheduler) Tick(now int64) {
	reminders, err := s.repo.TakeDueReminders(now)
	if err != nil {
		s.log.Error("take due reminders", zap.Int64("ts", now), zap.Error(err))
	}
	for _, rec := range reminders {
		err := s.notifier.Notify(rec.UserID, renderReminder(rec),
			Button{"Отменить моё участие", fmt.Sprintf("wontgo %d", rec.EventID)})
		if err != nil {
			s.log.Error("send reminder",
				zap.Int64("event", rec.EventID),
				zap.Int64("user", rec.UserID),
				zap.Error(err))
		}
	}

	if err := s.repo.SweepPastEvents(now); err != nil {
		s.log.Error("sweep past events", zap.Int64("ts", now), zap.Error(err))
	}
}

package main

import "sync"

// SessionCache remembers which event each user is currently looking at,
// so a free-text follow-up lands on the right reservation. It is a
// convenience cache, not source of truth: after a restart it is rebuilt
// lazily from the store's most recent registration, and a stale entry
// only misroutes a note.
type SessionCache struct {
	repo  Repository
	mu    sync.RWMutex
	users map[int64]int64 // user id -> event id
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(repo Repository) *SessionCache {
	return &SessionCache{
		repo:  repo,
		users: make(map[int64]int64),
	}
}

// Set records the event the user is interacting with.
func (c *SessionCache) Set(userID, eventID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[userID] = eventID
}

// Clear forgets the user's current event.
func (c *SessionCache) Clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userID)
}

// Current returns the user's current event, falling back to the most
// recent registration in the store. Returns 0 when neither exists.
func (c *SessionCache) Current(userID int64) (int64, error) {
	c.mu.RLock()
	eventID, ok := c.users[userID]
	c.mu.RUnlock()
	if ok {
		return eventID, nil
	}
	return c.repo.MostRecentRegistration(userID)
}

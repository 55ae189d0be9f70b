package main

import (
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"
)

// Button is an opaque (label, action) pair the transport renders as an
// interactive control.
type Button struct {
	Label  string
	Action string
}

// Notifier is the outbound capability of the transport adapter. Text is
// HTML-formatted.
type Notifier interface {
	Notify(userID int64, text string, buttons ...Button) error
}

// Inbound actions, already parsed by the transport adapter.
type CreateEventAction struct{ Event Event }

type SignUpAction struct {
	EventID int64
	Adult   bool
}

type CancelAction struct {
	EventID int64
	Adult   bool
}

type WontGoAction struct{ EventID int64 }

type BroadcastAction struct {
	EventID int64
	Text    string
}

type DeleteEventAction struct{ EventID int64 }

type ShowWaitingListAction struct{ EventID int64 }

type ShowEventAction struct{ EventID int64 }

type ListEventsAction struct{}

type AttachNoteAction struct{ Text string }

// SessionRouter authorizes inbound actions, delegates to the capacity
// engine and the store, and produces the outbound notifications.
type SessionRouter struct {
	repo     Repository
	engine   *CapacityEngine
	notifier Notifier
	sessions *SessionCache
	cfg      *Config
	log      *zap.Logger
	botName  string
}

// NewSessionRouter creates a new SessionRouter. botName is the bot's
// public handle, used in deep sign-up links.
func NewSessionRouter(repo Repository, engine *CapacityEngine, notifier Notifier, sessions *SessionCache, cfg *Config, log *zap.Logger, botName string) *SessionRouter {
	return &SessionRouter{
		repo:     repo,
		engine:   engine,
		notifier: notifier,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
		botName:  botName,
	}
}

// IsAdmin reports whether the user may perform admin-only actions.
func (r *SessionRouter) IsAdmin(u User) bool {
	return r.cfg.AdminIDs[u.ID] || (u.Handle != "" && r.cfg.AdminNames[u.Handle])
}

// requireAdmin drops non-admin attempts silently. The bot does not
// reveal the existence of restricted commands, so no message goes back.
func (r *SessionRouter) requireAdmin(u User, action string) bool {
	if r.IsAdmin(u) {
		return true
	}
	r.log.Warn("not allowed",
		zap.Int64("user", u.ID),
		zap.String("handle", u.Handle),
		zap.String("action", action))
	return false
}

// Handle dispatches one inbound action.
func (r *SessionRouter) Handle(user User, action interface{}) {
	switch a := action.(type) {
	case CreateEventAction:
		r.handleCreateEvent(user, a.Event)
	case SignUpAction:
		r.handleSignUp(user, a.EventID, a.Adult)
	case CancelAction:
		r.handleCancel(user, a.EventID, a.Adult)
	case WontGoAction:
		r.handleWontGo(user, a.EventID)
	case BroadcastAction:
		r.handleBroadcast(user, a.EventID, a.Text)
	case DeleteEventAction:
		r.handleDelete(user, a.EventID)
	case ShowWaitingListAction:
		r.handleShowWaitingList(user, a.EventID)
	case ShowEventAction:
		r.sessions.Set(user.ID, a.EventID)
		r.showEvent(user, a.EventID)
	case ListEventsAction:
		r.handleListEvents(user)
	case AttachNoteAction:
		r.handleAttachNote(user, a.Text)
	default:
		r.log.Warn("unknown action", zap.Int64("user", user.ID))
	}
}

func (r *SessionRouter) notify(userID int64, text string, buttons ...Button) {
	if err := r.notifier.Notify(userID, text, buttons...); err != nil {
		// The state transition already committed; a failed send is
		// logged and dropped, never retried.
		r.log.Error("notify", zap.Int64("user", userID), zap.Error(err))
	}
}

func (r *SessionRouter) handleCreateEvent(user User, ev Event) {
	if !r.requireAdmin(user, "create event") {
		return
	}
	id, err := r.repo.CreateEvent(ev)
	if err != nil {
		r.log.Error("create event", zap.Error(err))
		r.notify(user.ID, fmt.Sprintf("Failed to add event: %s.", err))
		return
	}
	r.notify(user.ID, "Direct event link: "+deepLink(r.botName, id))
}

func (r *SessionRouter) handleSignUp(user User, eventID int64, adult bool) {
	var adults, children int64
	if adult {
		adults = 1
	} else {
		children = 1
	}
	_, err := r.engine.SignUp(eventID, user, adults, children, unixNow())
	switch {
	case errors.Is(err, ErrUnknownEvent):
		r.notify(user.ID, "Событие не найдено.")
	case errors.Is(err, ErrReservationLimit):
		r.notify(user.ID, "Превышен лимит мест на одну бронь.")
	case err != nil:
		r.log.Error("sign up", zap.Int64("event", eventID), zap.Int64("user", user.ID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
	default:
		r.sessions.Set(user.ID, eventID)
		r.showEvent(user, eventID)
	}
}

func (r *SessionRouter) handleCancel(user User, eventID int64, adult bool) {
	promoted, err := r.engine.Cancel(eventID, user.ID, adult)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		r.notify(user.ID, "Событие не найдено.")
	case err != nil:
		r.log.Error("cancel", zap.Int64("event", eventID), zap.Int64("user", user.ID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
	default:
		r.showEvent(user, eventID)
		if promoted != nil {
			r.notifyPromoted(*promoted)
		}
	}
}

func (r *SessionRouter) handleWontGo(user User, eventID int64) {
	promotions, err := r.engine.WontGo(eventID, user.ID)
	switch {
	case errors.Is(err, ErrUnknownEvent):
		r.notify(user.ID, "Событие не найдено.")
	case err != nil:
		r.log.Error("wontgo", zap.Int64("event", eventID), zap.Int64("user", user.ID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
	default:
		r.sessions.Clear(user.ID)
		r.notify(user.ID, "Мы сожалеем, что вы не сможете пойти. Увидимся в другой раз. Спасибо!")
		for _, p := range promotions {
			r.notifyPromoted(p)
		}
	}
}

func (r *SessionRouter) notifyPromoted(p Promotion) {
	ev, err := r.repo.GetEvent(p.EventID)
	if err != nil || ev == nil {
		r.log.Error("promoted event lookup", zap.Int64("event", p.EventID), zap.Error(err))
		return
	}
	r.notify(p.UserID, renderPromotion(ev), Button{"К событию", fmt.Sprintf("event %d", ev.ID)})
}

// handleBroadcast sends the text to every confirmed participant,
// prefixed with a link to the sender.
func (r *SessionRouter) handleBroadcast(user User, eventID int64, text string) {
	if !r.requireAdmin(user, "broadcast") {
		return
	}
	regs, err := r.repo.ListRegistrations(eventID, false)
	if err != nil {
		r.log.Error("broadcast list", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	message := fmt.Sprintf("<a href=\"tg://user?id=%d\">%s</a>: %s",
		user.ID, html.EscapeString(user.Name), html.EscapeString(text))
	seen := make(map[int64]bool)
	for _, reg := range regs {
		if seen[reg.UserID] {
			continue
		}
		seen[reg.UserID] = true
		r.notify(reg.UserID, message)
	}
}

func (r *SessionRouter) handleDelete(user User, eventID int64) {
	if !r.requireAdmin(user, "delete event") {
		return
	}
	if err := r.repo.DeleteEvent(eventID); err != nil {
		r.log.Error("delete event", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, fmt.Sprintf("Failed to delete event: %s.", err))
		return
	}
	r.notify(user.ID, "Событие удалено.")
}

func (r *SessionRouter) handleShowWaitingList(user User, eventID int64) {
	if !r.cfg.PublicLists && !r.requireAdmin(user, "show waiting list") {
		return
	}
	ev, err := r.repo.GetEvent(eventID)
	if err != nil {
		r.log.Error("get event", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	if ev == nil {
		r.notify(user.ID, "Событие не найдено.")
		return
	}
	regs, err := r.repo.ListRegistrations(eventID, true)
	if err != nil {
		r.log.Error("waiting list", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	text, buttons := renderWaitingList(ev, regs)
	r.notify(user.ID, text, buttons...)
}

func (r *SessionRouter) handleListEvents(user User) {
	events, err := r.repo.ListOpenEvents(unixNow())
	if err != nil {
		r.log.Error("list events", zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	text, buttons := renderEventList(events)
	r.notify(user.ID, text, buttons...)
}

// handleAttachNote stores a free-text follow-up on the user's current
// reservation. Without a current event and without any registration the
// note is dropped quietly.
func (r *SessionRouter) handleAttachNote(user User, text string) {
	eventID, err := r.sessions.Current(user.ID)
	if err != nil {
		r.log.Error("session lookup", zap.Int64("user", user.ID), zap.Error(err))
		return
	}
	if eventID == 0 {
		return
	}
	if err := r.repo.SetAttachment(eventID, user.ID, text); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("attach note", zap.Int64("event", eventID), zap.Int64("user", user.ID), zap.Error(err))
		}
		return
	}
	r.showEvent(user, eventID)
}

// showEvent re-renders the event card to the acting user.
func (r *SessionRouter) showEvent(user User, eventID int64) {
	ev, err := r.repo.GetEvent(eventID)
	if err != nil {
		r.log.Error("get event", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	if ev == nil {
		r.notify(user.ID, "Событие не найдено.")
		return
	}
	confAdults, confChildren, err := r.repo.CountConfirmed(eventID)
	if err != nil {
		r.log.Error("count confirmed", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	waitRegs, err := r.repo.ListRegistrations(eventID, true)
	if err != nil {
		r.log.Error("waiting list", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	var waitAdults, waitChildren int64
	for _, reg := range waitRegs {
		waitAdults += reg.Adults
		waitChildren += reg.Children
	}
	mine, err := r.repo.UserRegistrations(eventID, user.ID)
	if err != nil {
		r.log.Error("user registrations", zap.Int64("event", eventID), zap.Error(err))
		r.notify(user.ID, "Не удалось обработать запрос.")
		return
	}
	text, buttons := renderEventCard(ev, confAdults, confChildren, waitAdults, waitChildren, mine, r.IsAdmin(user))
	r.notify(user.ID, text, buttons...)
}

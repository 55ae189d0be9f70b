package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// TelegramNotifier implements Notifier on top of the bot API. Buttons
// render as one inline keyboard row each.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

func (n *TelegramNotifier) Notify(userID int64, text string, buttons ...Button) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if len(buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Action)))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := n.bot.Send(msg)
	return err
}

// newEventPayload is the JSON body admins send to create an event.
type newEventPayload struct {
	Name                      string `json:"name"`
	Link                      string `json:"link"`
	Start                     string `json:"start"`
	Remind                    string `json:"remind"`
	MaxAdults                 int64  `json:"max_adults"`
	MaxChildren               int64  `json:"max_children"`
	MaxAdultsPerReservation   int64  `json:"max_adults_per_reservation"`
	MaxChildrenPerReservation int64  `json:"max_children_per_reservation"`
}

const eventTimeLayout = "2006-01-02 15:04 -07:00"

// TelegramAdapter translates inbound updates into structured actions for
// the router and handles the file-producing admin commands (QR code and
// CSV export) that need more than the Notify capability.
type TelegramAdapter struct {
	bot    *tgbotapi.BotAPI
	router *SessionRouter
	repo   Repository
	log    *zap.Logger
}

// NewTelegramAdapter creates a new TelegramAdapter.
func NewTelegramAdapter(bot *tgbotapi.BotAPI, router *SessionRouter, repo Repository, log *zap.Logger) *TelegramAdapter {
	return &TelegramAdapter{bot: bot, router: router, repo: repo, log: log}
}

func userFrom(from *tgbotapi.User) User {
	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}
	return User{ID: int64(from.ID), Name: name, Handle: from.UserName}
}

// HandleMessage routes one inbound text message.
func (a *TelegramAdapter) HandleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	user := userFrom(msg.From)
	text := msg.Text

	switch {
	case strings.Contains(text, "{"):
		a.handleNewEvent(user, text)
	case strings.HasPrefix(text, "@"):
		a.handleBroadcastText(user, text)
	case text == "/help":
		a.handleHelp(user)
	case text == "/start":
		a.router.Handle(user, ListEventsAction{})
	case strings.HasPrefix(text, "/start "):
		if id, err := strconv.ParseInt(strings.TrimSpace(text[len("/start "):]), 10, 64); err == nil {
			a.router.Handle(user, ShowEventAction{EventID: id})
		}
	case strings.HasPrefix(text, "/qrcode "):
		a.handleQRCode(user, msg.Chat.ID, strings.TrimSpace(text[len("/qrcode "):]))
	case text == "/export":
		a.handleExport(user, msg.Chat.ID)
	default:
		a.router.Handle(user, AttachNoteAction{Text: text})
	}
}

// HandleCallback routes one inline button press.
func (a *TelegramAdapter) HandleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.From == nil {
		return
	}
	if _, err := a.bot.AnswerCallbackQuery(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		a.log.Warn("answer callback", zap.Error(err))
	}
	action, ok := parseCallbackData(cq.Data)
	if !ok {
		a.log.Warn("bad callback data", zap.String("data", cq.Data))
		return
	}
	a.router.Handle(userFrom(cq.From), action)
}

// parseCallbackData decodes a callback action string, e.g.
// "sign_up 3 adult" or "event_list".
func parseCallbackData(data string) (interface{}, bool) {
	fields := strings.Fields(data)
	if len(fields) == 0 {
		return nil, false
	}
	if fields[0] == "event_list" {
		return ListEventsAction{}, true
	}
	if len(fields) < 2 {
		return nil, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, false
	}
	switch fields[0] {
	case "event":
		return ShowEventAction{EventID: id}, true
	case "sign_up":
		if len(fields) != 3 {
			return nil, false
		}
		return SignUpAction{EventID: id, Adult: fields[2] == "adult"}, true
	case "cancel":
		if len(fields) != 3 {
			return nil, false
		}
		return CancelAction{EventID: id, Adult: fields[2] == "adult"}, true
	case "wontgo":
		return WontGoAction{EventID: id}, true
	case "delete":
		return DeleteEventAction{EventID: id}, true
	case "show_waiting_list":
		return ShowWaitingListAction{EventID: id}, true
	}
	return nil, false
}

// handleNewEvent parses the admin JSON payload. Non-admins are dropped
// before parsing so the command surface stays hidden.
func (a *TelegramAdapter) handleNewEvent(user User, text string) {
	if !a.router.IsAdmin(user) {
		a.log.Warn("not allowed", zap.Int64("user", user.ID), zap.String("action", "create event"))
		return
	}
	var payload newEventPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		a.reply(user.ID, fmt.Sprintf("Failed to parse json: %s.", err))
		return
	}
	start, err := time.Parse(eventTimeLayout, payload.Start)
	if err != nil {
		a.reply(user.ID, fmt.Sprintf("Failed to parse start time: %s.", err))
		return
	}
	remind, err := time.Parse(eventTimeLayout, payload.Remind)
	if err != nil {
		a.reply(user.ID, fmt.Sprintf("Failed to parse remind time: %s.", err))
		return
	}
	a.router.Handle(user, CreateEventAction{Event: Event{
		Name:                      payload.Name,
		Link:                      payload.Link,
		Start:                     start.Unix(),
		Remind:                    remind.Unix(),
		MaxAdults:                 payload.MaxAdults,
		MaxChildren:               payload.MaxChildren,
		MaxAdultsPerReservation:   payload.MaxAdultsPerReservation,
		MaxChildrenPerReservation: payload.MaxChildrenPerReservation,
	}})
}

// handleBroadcastText parses "@event_id text".
func (a *TelegramAdapter) handleBroadcastText(user User, text string) {
	space := strings.Index(text, " ")
	if space < 2 {
		return
	}
	id, err := strconv.ParseInt(text[1:space], 10, 64)
	if err != nil {
		return
	}
	a.router.Handle(user, BroadcastAction{EventID: id, Text: strings.TrimSpace(text[space:])})
}

func (a *TelegramAdapter) handleHelp(user User) {
	if !a.router.IsAdmin(user) {
		a.reply(user.ID, "Этот бот поможет вам записываться на мероприятия: /start")
		return
	}
	a.reply(user.ID, "<b>Добавить мероприятие</b> - \n{ \"name\":\"Название\", \"link\":\"https://t.me/channel/1\", \"start\":\"2026-05-29 15:00 +02:00\", \"remind\":\"2026-05-28 15:00 +02:00\", \"max_adults\":15, \"max_children\":15, \"max_adults_per_reservation\":4, \"max_children_per_reservation\":4 }"+
		"\n\n<b>Послать сообщение всем забронировавшим</b> - \n@номер_мероприятия текст"+
		"\n\n<b>QR-код ссылки на событие</b> - /qrcode номер_мероприятия"+
		"\n\n<b>Экспорт регистраций</b> - /export")
}

// handleQRCode sends a QR code of the deep sign-up link for an event.
func (a *TelegramAdapter) handleQRCode(user User, chatID int64, arg string) {
	if !a.router.IsAdmin(user) {
		a.log.Warn("not allowed", zap.Int64("user", user.ID), zap.String("action", "qrcode"))
		return
	}
	eventID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		a.reply(user.ID, "Использование: /qrcode номер_мероприятия")
		return
	}
	link := deepLink(a.bot.Self.UserName, eventID)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		a.log.Error("qr encode", zap.Error(err))
		a.reply(user.ID, "Ошибка генерации QR-кода.")
		return
	}
	photo := tgbotapi.NewPhotoUpload(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("event_%d.png", eventID),
		Bytes: png,
	})
	photo.Caption = link
	if _, err := a.bot.Send(photo); err != nil {
		a.log.Error("send qr", zap.Error(err))
	}
}

// handleExport sends all registrations as a CSV document.
func (a *TelegramAdapter) handleExport(user User, chatID int64) {
	if !a.router.IsAdmin(user) {
		a.log.Warn("not allowed", zap.Int64("user", user.ID), zap.String("action", "export"))
		return
	}
	rows, err := a.repo.AllRegistrations()
	if err != nil {
		a.log.Error("export", zap.Error(err))
		a.reply(user.ID, "Ошибка получения данных о регистрациях.")
		return
	}
	if len(rows) == 0 {
		a.reply(user.ID, "Регистрации отсутствуют.")
		return
	}

	var buf bytes.Buffer
	// UTF-8 BOM for Excel compatibility.
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(&buf)
	writer.Write([]string{"Событие", "Дата события", "ID пользователя", "Имя", "Ник", "Категория", "Статус", "Дата записи", "Заметка"})
	for _, row := range rows {
		category := "взрослый"
		if row.Children > 0 {
			category = "ребёнок"
		}
		status := "подтверждено"
		if row.Waiting {
			status = "лист ожидания"
		}
		writer.Write([]string{
			row.EventName,
			formatTS(row.EventStart),
			strconv.FormatInt(row.UserID, 10),
			row.UserName,
			row.UserHandle,
			category,
			status,
			formatTS(row.JoinedAt),
			row.Attachment,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		a.log.Error("export csv", zap.Error(err))
		a.reply(user.ID, "Ошибка записи данных в CSV.")
		return
	}

	doc := tgbotapi.NewDocumentUpload(chatID, tgbotapi.FileBytes{
		Name:  "registrations_" + time.Now().Format("20060102_150405") + ".csv",
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Экспорт регистраций (%d записей)", len(rows))
	if _, err := a.bot.Send(doc); err != nil {
		a.log.Error("send export", zap.Error(err))
	}
}

func (a *TelegramAdapter) reply(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		a.log.Error("reply", zap.Int64("user", userID), zap.Error(err))
	}
}

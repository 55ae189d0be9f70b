package main

import (
	"fmt"
	"html"
	"strings"
)

// renderEventCard builds the event view sent back after every
// state-changing action: title, start time, free slots, the viewer's own
// reservations and the action buttons.
func renderEventCard(ev *Event, confAdults, confChildren, waitAdults, waitChildren int64, mine []Registration, admin bool) (string, []Button) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nНачало: %s\n", formatEventTitle(ev), formatTS(ev.Start))

	freeAdults := ev.MaxAdults - confAdults
	if freeAdults < 0 {
		freeAdults = 0
	}
	freeChildren := ev.MaxChildren - confChildren
	if freeChildren < 0 {
		freeChildren = 0
	}
	if ev.MaxAdults > 0 {
		fmt.Fprintf(&b, "Свободных мест (взрослые): %d из %d", freeAdults, ev.MaxAdults)
		if waitAdults > 0 {
			fmt.Fprintf(&b, ", в листе ожидания: %d", waitAdults)
		}
		b.WriteString("\n")
	}
	if ev.MaxChildren > 0 {
		fmt.Fprintf(&b, "Свободных мест (дети): %d из %d", freeChildren, ev.MaxChildren)
		if waitChildren > 0 {
			fmt.Fprintf(&b, ", в листе ожидания: %d", waitChildren)
		}
		b.WriteString("\n")
	}

	var hasAdult, hasChild bool
	for _, reg := range mine {
		status := "подтверждено"
		if reg.Waiting {
			status = "в листе ожидания"
		}
		if reg.Adults > 0 {
			hasAdult = true
			fmt.Fprintf(&b, "Ваша запись (взрослый): %s\n", status)
		} else {
			hasChild = true
			fmt.Fprintf(&b, "Ваша запись (ребёнок): %s\n", status)
		}
		if reg.Attachment != "" {
			fmt.Fprintf(&b, "Ваша заметка: %s\n", html.EscapeString(reg.Attachment))
		}
	}

	var buttons []Button
	if ev.MaxAdults > 0 && !hasAdult {
		label := "Записаться (взрослый)"
		if freeAdults == 0 {
			label = "В лист ожидания (взрослый)"
		}
		buttons = append(buttons, Button{label, fmt.Sprintf("sign_up %d adult", ev.ID)})
	}
	if ev.MaxChildren > 0 && !hasChild {
		label := "Записаться (ребёнок)"
		if freeChildren == 0 {
			label = "В лист ожидания (ребёнок)"
		}
		buttons = append(buttons, Button{label, fmt.Sprintf("sign_up %d child", ev.ID)})
	}
	if hasAdult {
		buttons = append(buttons, Button{"Отменить (взрослый)", fmt.Sprintf("cancel %d adult", ev.ID)})
	}
	if hasChild {
		buttons = append(buttons, Button{"Отменить (ребёнок)", fmt.Sprintf("cancel %d child", ev.ID)})
	}
	if hasAdult || hasChild {
		buttons = append(buttons, Button{"Не пойду", fmt.Sprintf("wontgo %d", ev.ID)})
	}
	buttons = append(buttons,
		Button{"Лист ожидания", fmt.Sprintf("show_waiting_list %d", ev.ID)},
		Button{"К списку событий", "event_list"})
	if admin {
		buttons = append(buttons, Button{"Удалить событие", fmt.Sprintf("delete %d", ev.ID)})
	}
	return b.String(), buttons
}

// renderEventList builds the upcoming-events overview with one button
// per event.
func renderEventList(events []Event) (string, []Button) {
	if len(events) == 0 {
		return "Ближайших мероприятий нет.", nil
	}
	var b strings.Builder
	b.WriteString("Добрый день! Вот список ближайших мероприятий:\n")
	buttons := make([]Button, 0, len(events))
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s\n", formatTS(ev.Start), formatEventTitle(&ev))
		buttons = append(buttons, Button{
			fmt.Sprintf("%s %s", formatTS(ev.Start), ev.Name),
			fmt.Sprintf("event %d", ev.ID),
		})
	}
	return b.String(), buttons
}

// renderWaitingList shows the queue for one event in promotion order.
func renderWaitingList(ev *Event, regs []Registration) (string, []Button) {
	var b strings.Builder
	fmt.Fprintf(&b, "Лист ожидания: %s\n", formatEventTitle(ev))
	if len(regs) == 0 {
		b.WriteString("Пусто.\n")
	}
	for i, reg := range regs {
		category := "взрослый"
		if reg.Children > 0 {
			category = "ребёнок"
		}
		name := html.EscapeString(reg.UserName)
		if reg.UserHandle != "" {
			name += " @" + html.EscapeString(reg.UserHandle)
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, name, category)
	}
	return b.String(), []Button{{"К событию", fmt.Sprintf("event %d", ev.ID)}}
}

// renderReminder builds the reminder message sent before an event starts.
func renderReminder(rec ReminderRecord) string {
	title := html.EscapeString(rec.Name)
	if rec.Link != "" {
		title = fmt.Sprintf("<a href=\"%s\">%s</a>", rec.Link, title)
	}
	return fmt.Sprintf("\nЗдравствуйте!\nНе забудьте, пожалуйста, что вы записались на\n%s\nНачало: %s\nБудем рады вас видеть!\n",
		title, formatTS(rec.Start))
}

// renderPromotion tells a user their waiting-list entry became confirmed.
func renderPromotion(ev *Event) string {
	return fmt.Sprintf("Освободилось место, теперь вы записаны на %s\nНачало: %s",
		formatEventTitle(ev), formatTS(ev.Start))
}

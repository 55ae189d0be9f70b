package main

import (
	"fmt"
	"html"
	"time"
)

func unixNow() int64 {
	return time.Now().Unix()
}

// formatTS renders a unix timestamp in local time, e.g. "20.04 11:10".
func formatTS(ts int64) string {
	return time.Unix(ts, 0).Local().Format("02.01 15:04")
}

// formatEventTitle renders the event name, linked when a URL is set.
func formatEventTitle(ev *Event) string {
	if ev.Link != "" {
		return fmt.Sprintf("<a href=\"%s\">%s</a>", ev.Link, html.EscapeString(ev.Name))
	}
	return html.EscapeString(ev.Name)
}

func deepLink(botName string, eventID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botName, eventID)
}

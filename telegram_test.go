package main

import "testing"

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data string
		want interface{}
		ok   bool
	}{
		{"event_list", ListEventsAction{}, true},
		{"event 3", ShowEventAction{EventID: 3}, true},
		{"sign_up 3 adult", SignUpAction{EventID: 3, Adult: true}, true},
		{"sign_up 3 child", SignUpAction{EventID: 3, Adult: false}, true},
		{"cancel 3 adult", CancelAction{EventID: 3, Adult: true}, true},
		{"wontgo 3", WontGoAction{EventID: 3}, true},
		{"delete 3", DeleteEventAction{EventID: 3}, true},
		{"show_waiting_list 3", ShowWaitingListAction{EventID: 3}, true},
		{"", nil, false},
		{"sign_up", nil, false},
		{"sign_up x adult", nil, false},
		{"sign_up 3", nil, false},
		{"bogus 3", nil, false},
	}
	for _, tt := range tests {
		got, ok := parseCallbackData(tt.data)
		if ok != tt.ok {
			t.Errorf("parseCallbackData(%q): ok = %v, want %v", tt.data, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseCallbackData(%q): got %+v, want %+v", tt.data, got, tt.want)
		}
	}
}

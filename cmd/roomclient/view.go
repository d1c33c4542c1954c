package main

import (
	"fmt"
	"io"

	"meandu-go/internal/imtypes"
	"meandu-go/internal/session"
)

// roomState is what the view reads back from the session after an event.
type roomState interface {
	Messages() []imtypes.RoomMessage
	Typing() *imtypes.TypingUpdate
	State() session.State
	DeliveryStatus(id string) session.DeliveryStatus
}

// view prints session changes as terminal lines. It is not safe for
// concurrent use.
type view struct {
	out    io.Writer
	room   roomState
	selfID string

	printed int
	lastID  string
	pending map[string]string // message id -> body, until sent or failed
}

func newView(out io.Writer, room roomState, selfID string) *view {
	return &view{out: out, room: room, selfID: selfID, pending: make(map[string]string)}
}

func (v *view) track(msg imtypes.RoomMessage) {
	v.pending[msg.ID] = msg.Message
}

func (v *view) handle(ev session.Event) {
	switch ev.Kind {
	case session.MessagesChanged:
		v.printMessages()
	case session.TypingChanged:
		if t := v.room.Typing(); t != nil {
			fmt.Fprintf(v.out, "  %s is typing...\n", t.SenderName)
		}
	case session.StateChanged:
		fmt.Fprintf(v.out, "-- %s --\n", v.room.State())
	case session.StatusChanged:
		v.printFailures()
	}
}

func (v *view) printMessages() {
	msgs := v.room.Messages()
	// a history load replaces the log; start over when the printed prefix is gone
	if v.printed > len(msgs) || (v.printed > 0 && msgs[v.printed-1].ID != v.lastID) {
		fmt.Fprintln(v.out, "-- history --")
		v.printed = 0
	}
	for _, m := range msgs[v.printed:] {
		name := m.SenderName
		if m.Sender == v.selfID {
			name = "you"
		}
		stamp := "--:--"
		if at := m.SentAt(); !at.IsZero() {
			stamp = at.Local().Format("15:04")
		}
		fmt.Fprintf(v.out, "[%s] %s: %s\n", stamp, name, m.Message)
	}
	v.printed = len(msgs)
	if v.printed > 0 {
		v.lastID = msgs[v.printed-1].ID
	}
}

func (v *view) printFailures() {
	for id, body := range v.pending {
		switch v.room.DeliveryStatus(id) {
		case session.StatusFailed:
			fmt.Fprintf(v.out, "! not delivered: %s\n", body)
			delete(v.pending, id)
		case session.StatusSent:
			delete(v.pending, id)
		}
	}
}

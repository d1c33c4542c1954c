// Package composer turns raw user input into outbound room traffic.
package composer

import (
	"strings"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/imtypes"
)

// Sender is the part of a room session the composer drives.
type Sender interface {
	SendMessage(text string) (imtypes.RoomMessage, error)
	SendTypingUpdate(kind imtypes.TypingKind)
}

// Composer sends what the user typed.
type Composer struct {
	sender Sender
}

func New(sender Sender) *Composer {
	return &Composer{sender: sender}
}

// Submit sends text with surrounding whitespace removed. Blank input is
// ignored and reported as ok=false.
func (c *Composer) Submit(text string) (imtypes.RoomMessage, bool) {
	body := strings.TrimSpace(text)
	if body == "" {
		return imtypes.RoomMessage{}, false
	}
	msg, err := c.sender.SendMessage(body)
	if err != nil {
		log.Warn().Err(err).Msg("[composer] message not sent")
		return imtypes.RoomMessage{}, false
	}
	return msg, true
}

// TextChanged signals typing for every edit that leaves non-blank text.
// Receivers expire the indicator on their own; no stop signal is sent.
func (c *Composer) TextChanged(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.sender.SendTypingUpdate(imtypes.TypingKindTyping)
}

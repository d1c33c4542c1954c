// Package notify surfaces user-visible notices (toasts).
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
)

// GenericError is the text shown for failures the user cannot act on.
const GenericError = "Something went wrong. Please try again."

// Notifier shows a short, transient notice to the user.
type Notifier interface {
	Toast(message string)
}

// Writer prints toasts as lines on an io.Writer, e.g. a terminal.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a Writer notifier.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Toast writes the message on its own line.
func (w *Writer) Toast(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.out, "! %s\n", message); err != nil {
		log.Warn().Err(err).Msg("[notify] toast write failed")
	}
}

// Log sends toasts to the log only.
type Log struct{}

func (Log) Toast(message string) {
	log.Warn().Str("toast", message).Msg("[notify] toast")
}

package session

// EventKind says which part of the session changed.
type EventKind int

const (
	MessagesChanged EventKind = iota + 1
	TypingChanged
	StateChanged
	StatusChanged
)

func (k EventKind) String() string {
	switch k {
	case MessagesChanged:
		return "messages"
	case TypingChanged:
		return "typing"
	case StateChanged:
		return "state"
	case StatusChanged:
		return "status"
	default:
		return "unknown"
	}
}

// Event is a change notification. Watchers read the new state through the
// session accessors.
type Event struct {
	Kind   EventKind
	RoomID string
}

const watchBuffer = 32

// Watch returns a channel of change events and a function that stops the
// subscription and closes the channel. A watcher that falls behind misses
// events instead of blocking the session.
func (s *Session) Watch() (<-chan Event, func()) {
	ch := make(chan Event, watchBuffer)

	s.watchMu.Lock()
	s.nextW++
	id := s.nextW
	s.watchers[id] = ch
	s.watchMu.Unlock()

	return ch, func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if c, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(c)
		}
	}
}

func (s *Session) emit(kind EventKind) {
	ev := Event{Kind: kind, RoomID: s.roomID}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Package lifecycle binds a room session to view visibility and app
// foreground/background transitions.
package lifecycle

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/events"
)

// Session is the part of a room session the glue drives.
type Session interface {
	RoomID() string
	FetchHistory(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Resubscribe(ctx context.Context) error
	Close()
}

// Glue opens the session while its view is visible and the app is in the
// foreground, and closes it otherwise.
type Glue struct {
	ctx     context.Context
	session Session

	mu      sync.Mutex
	visible bool
	unsub   []func()
}

// New subscribes the glue to app transitions on bus. ctx bounds the network
// calls made from bus handlers. Call Stop when the view is torn down.
func New(ctx context.Context, s Session, bus *events.Bus) *Glue {
	g := &Glue{ctx: ctx, session: s}
	g.unsub = append(g.unsub,
		bus.Subscribe(events.TopicAppForeground, g.onForeground),
		bus.Subscribe(events.TopicAppBackground, g.onBackground),
	)
	return g
}

// Visible reports whether the view is showing.
func (g *Glue) Visible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visible
}

// ViewAppeared loads history, then subscribes. A history failure has already
// been shown to the user and does not prevent subscribing.
func (g *Glue) ViewAppeared(ctx context.Context) error {
	g.mu.Lock()
	g.visible = true
	g.mu.Unlock()

	_ = g.session.FetchHistory(ctx)
	return g.session.Subscribe(ctx)
}

// ViewDisappeared closes the session.
func (g *Glue) ViewDisappeared() {
	g.mu.Lock()
	g.visible = false
	g.mu.Unlock()

	g.session.Close()
}

// Stop detaches from the bus and closes the session.
func (g *Glue) Stop() {
	g.mu.Lock()
	unsub := g.unsub
	g.unsub = nil
	g.mu.Unlock()

	for _, f := range unsub {
		f()
	}
	g.ViewDisappeared()
}

// onForeground refreshes history and forces a fresh connection; the old one
// may have died while backgrounded.
func (g *Glue) onForeground(events.Event) {
	if !g.Visible() {
		return
	}
	log.Info().Str("room", g.session.RoomID()).Msg("[lifecycle] foreground, resubscribing")
	_ = g.session.FetchHistory(g.ctx)
	if err := g.session.Resubscribe(g.ctx); err != nil {
		log.Warn().Err(err).Str("room", g.session.RoomID()).Msg("[lifecycle] resubscribe failed")
	}
}

// onBackground closes the session but keeps the view marked visible, so the
// next foreground reopens it.
func (g *Glue) onBackground(events.Event) {
	if !g.Visible() {
		return
	}
	log.Info().Str("room", g.session.RoomID()).Msg("[lifecycle] background, closing")
	g.session.Close()
}

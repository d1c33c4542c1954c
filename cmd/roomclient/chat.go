package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"meandu-go/internal/composer"
	"meandu-go/internal/events"
	"meandu-go/internal/history"
	"meandu-go/internal/imtypes"
	"meandu-go/internal/lifecycle"
	"meandu-go/internal/notify"
	"meandu-go/internal/session"
	"meandu-go/internal/transport"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Join a room and chat",
	Long: `chat joins the room given by --room. Lines you type are sent as
messages. Commands:

  /refresh   reload the room history
  /away      simulate the app going to the background (also SIGUSR1)
  /back      simulate the app returning to the foreground (also SIGUSR2)
  /quit      leave the room`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if err := requireRoom(); err != nil {
		return err
	}
	u := cfg.Client.User
	me, err := imtypes.NewIdentity(u.ID, u.Name, u.Number, u.Thumbnail, u.Region)
	if err != nil {
		return fmt.Errorf("client user: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	api := history.NewClientFromConfig(cfg.Client)
	if room, err := api.FetchRoom(ctx, flagRoom); err != nil {
		log.Warn().Err(err).Str("room", flagRoom).Msg("[chat] room details unavailable")
	} else {
		fmt.Fprintf(out, "== %s ==\n", room.Name)
		if room.Description != "" {
			fmt.Fprintln(out, room.Description)
		}
	}

	sess := session.New(flagRoom, me, transport.New(transport.OptionsFromConfig(cfg.Client)), api, session.Options{
		Notifier:     notify.NewWriter(out),
		TypingExpiry: cfg.Client.TypingExpiry,
	})
	comp := composer.New(sess)

	bus := events.New()
	go bus.Run(ctx)
	glue := lifecycle.New(ctx, sess, bus)
	defer glue.Stop()

	changes, stopWatch := sess.Watch()
	defer stopWatch()
	v := newView(out, sess, me.ID)

	appSignals := make(chan os.Signal, 1)
	signal.Notify(appSignals, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(appSignals)

	if err := glue.ViewAppeared(ctx); err != nil {
		log.Warn().Err(err).Str("room", flagRoom).Msg("[chat] not connected, use /back to retry")
	}

	lines := readLines(ctx, cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-changes:
			if !ok {
				return nil
			}
			v.handle(ev)

		case sig := <-appSignals:
			if sig == syscall.SIGUSR1 {
				bus.Publish(events.Event{Topic: events.TopicAppBackground})
			} else {
				bus.Publish(events.Event{Topic: events.TopicAppForeground})
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case "/quit":
				return nil
			case "/refresh":
				_ = sess.FetchHistory(ctx)
			case "/away":
				bus.Publish(events.Event{Topic: events.TopicAppBackground})
			case "/back":
				bus.Publish(events.Event{Topic: events.TopicAppForeground})
			default:
				comp.TextChanged(line)
				if msg, ok := comp.Submit(line); ok {
					v.track(msg)
				}
			}
		}
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

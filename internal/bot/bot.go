// Package bot connects the scheduler to Twitch chat: it parses chat
// commands, dispatches them to the playback coordinator, and announces
// now-playing changes back to the channel.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/kant/TwitchMIDI/internal/config"
	"github.com/kant/TwitchMIDI/internal/scheduler"
	"github.com/kant/TwitchMIDI/internal/store"
)

// Bot is the Twitch chat frontend.
type Bot struct {
	client  *twitch.Client
	disp    *Dispatcher
	channel string
	prefix  string
}

// New creates a bot for the configured channel and registers the
// now-playing announcer with the scheduler.
func New(cfg *config.Config, sched *scheduler.Scheduler, aliases *store.Store) *Bot {
	token := cfg.Twitch.Token
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}

	b := &Bot{
		client:  twitch.NewClient(cfg.Twitch.Username, token),
		disp:    NewDispatcher(sched, aliases),
		channel: cfg.Twitch.Channel,
		prefix:  cfg.Twitch.Prefix,
	}

	sched.OnNowPlaying(func(np scheduler.NowPlaying) {
		b.say(fmt.Sprintf("Now playing [%s]: %s", np.Type, np.Request))
	})

	return b
}

// Run joins the channel and processes chat until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		b.handle(ctx, m)
	})
	b.client.OnConnect(func() {
		slog.Info("connected to twitch", "channel", b.channel)
	})
	b.client.Join(b.channel)

	done := make(chan error, 1)
	go func() { done <- b.client.Connect() }()

	select {
	case <-ctx.Done():
		if err := b.client.Disconnect(); err != nil {
			slog.Error("twitch disconnect failed", "error", err)
		}
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (b *Bot) handle(ctx context.Context, m twitch.PrivateMessage) {
	cmd, ok := ParseCommand(m.Message, b.prefix)
	if !ok {
		return
	}
	slog.Debug("chat command", "user", m.User.Name, "command", cmd.Name, "args", cmd.Args)
	if !b.disp.Dispatch(ctx, cmd, isPrivileged(m), b.say) {
		slog.Debug("unknown command", "command", cmd.Name)
	}
}

func (b *Bot) say(text string) {
	b.client.Say(b.channel, text)
}

// isPrivileged reports whether the sender may run operator commands.
func isPrivileged(m twitch.PrivateMessage) bool {
	return m.User.Badges["moderator"] > 0 || m.User.Badges["broadcaster"] > 0
}

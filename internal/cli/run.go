package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kant/TwitchMIDI/internal/bot"
	"github.com/kant/TwitchMIDI/internal/config"
	"github.com/kant/TwitchMIDI/internal/midiout"
	"github.com/kant/TwitchMIDI/internal/music"
	"github.com/kant/TwitchMIDI/internal/scheduler"
	"github.com/kant/TwitchMIDI/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
	Silent bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and the chat bot",
		Long: `Start the bar-synchronized playback scheduler, bind the MIDI output,
open the alias database and join the configured Twitch channel.

Example:
  twitchmidi run --config ./config.yaml
  twitchmidi run --config ./config.yaml --silent --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "config.yaml", "path to YAML configuration")
	cmd.Flags().BoolVar(&opts.Silent, "silent", false, "record MIDI in memory instead of sending to a port")

	return cmd
}

func runBot(cmd *cobra.Command, opts *RunOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}

	out, err := openTransport(cfg, opts.Silent)
	if err != nil {
		return fmt.Errorf("bind MIDI output: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			slog.Error("error closing MIDI output", "error", closeErr)
		}
	}()

	slog.Info("opening alias database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open alias database: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing alias database", "error", closeErr)
		}
	}()

	sched := scheduler.New(out, music.Theory{},
		scheduler.WithVolume(cfg.Volume),
		scheduler.WithAliases(scheduler.AliasFunc(func(name string) (string, error) {
			return st.Lookup(store.KindProgression, name)
		})),
	)
	if _, err := sched.SetTempo(cfg.Tempo); err != nil {
		return fmt.Errorf("start clock: %w", err)
	}
	defer func() {
		if stopErr := sched.FullStop(); stopErr != nil {
			slog.Error("error stopping playback", "error", stopErr)
		}
	}()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if cfg.Twitch.Channel == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No Twitch channel configured; running headless. Press Ctrl-C to stop.")
		<-ctx.Done()
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Joined #%s at %d BPM. Press Ctrl-C to stop.\n", cfg.Twitch.Channel, cfg.Tempo)
	b := bot.New(cfg, sched, st)
	if err := b.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("chat bot: %w", err)
	}
	return nil
}

func openTransport(cfg *config.Config, silent bool) (midiout.Transport, error) {
	if silent {
		slog.Info("silent mode: MIDI recorded in memory")
		return midiout.NewMemory(), nil
	}
	return midiout.Open(cfg.MIDI.Port, cfg.MIDI.Channel)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

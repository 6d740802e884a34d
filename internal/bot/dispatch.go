package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kant/TwitchMIDI/internal/music"
	"github.com/kant/TwitchMIDI/internal/scheduler"
	"github.com/kant/TwitchMIDI/internal/store"
)

// sweepSteps is the number of interpolated values a controller sweep sends
// across one bar.
const sweepSteps = 16

// Command is a parsed chat command.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits a chat line into a command and its argument text.
// Lines without the prefix are not commands.
func ParseCommand(line, prefix string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return Command{}, false
	}
	line = line[len(prefix):]
	name, args, _ := strings.Cut(line, " ")
	if name == "" {
		return Command{}, false
	}
	return Command{
		Name: strings.ToLower(name),
		Args: strings.TrimSpace(args),
	}, true
}

// Dispatcher routes parsed commands to the scheduler and the alias store.
type Dispatcher struct {
	sched   *scheduler.Scheduler
	aliases *store.Store // may be nil
}

// NewDispatcher creates a command dispatcher. The alias store is optional.
func NewDispatcher(sched *scheduler.Scheduler, aliases *store.Store) *Dispatcher {
	return &Dispatcher{sched: sched, aliases: aliases}
}

// Dispatch executes a command and sends user-visible output through reply.
// Playback commands run on their own goroutines because they suspend until
// a bar boundary; errors are relayed verbatim when they surface.
// Returns false for unknown commands.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, mod bool, reply func(string)) bool {
	switch cmd.Name {
	case "chord", "sendchord":
		go d.playback(reply, func() error { return d.sched.PlayProgression(ctx, cmd.Args) })
	case "loop", "sendloop":
		go d.playback(reply, func() error { return d.sched.PlayLoop(ctx, cmd.Args) })
	case "stoploop":
		d.sched.StopLoop()
		reply("Loop stopped")
	case "note", "sendnote":
		go d.playback(reply, func() error { return d.sched.PlayNote(ctx, cmd.Args) })
	case "tempo", "settempo":
		if !mod {
			reply(msgModOnly)
			return true
		}
		d.setTempo(cmd.Args, reply)
	case "volume", "setvolume":
		d.setVolume(cmd.Args, reply)
	case "cc", "sendcc":
		d.sendControl(ctx, cmd.Args, reply)
	case "queue", "midirequestqueue":
		reply(formatPending(d.sched.PendingQueue()))
	case "nowplaying", "midicurrentrequest":
		np, ok := d.sched.CurrentlyPlaying()
		if !ok {
			reply("Nothing is playing")
			return true
		}
		reply(fmt.Sprintf("Now playing [%s]: %s", np.Type, np.Request))
	case "clear":
		d.clear(cmd.Args, reply)
	case "rollback":
		d.rollback(cmd.Args, reply)
	case "sync", "syncmidi":
		if err := d.sched.Resync(); err != nil {
			reply(err.Error())
			return true
		}
		reply("Clock re-synced")
	case "fullstop", "fullstopmidi":
		if !mod {
			reply(msgModOnly)
			return true
		}
		if err := d.sched.FullStop(); err != nil {
			reply(err.Error())
			return true
		}
		reply("Playback fully stopped")
	case "addalias":
		if !mod {
			reply(msgModOnly)
			return true
		}
		d.addAlias(cmd.Args, reply)
	case "removealias":
		if !mod {
			reply(msgModOnly)
			return true
		}
		d.removeAlias(cmd.Args, reply)
	case "aliases":
		d.listAliases(reply)
	case "help", "midihelp":
		reply(helpText)
	default:
		return false
	}
	return true
}

const msgModOnly = "Only moderators can do that"

const helpText = "Commands: !chord !loop !stoploop !note !tempo !volume !cc " +
	"!queue !nowplaying !clear !rollback !sync !fullstop !addalias !removealias !aliases"

// playback runs a suspending playback call and relays its failure, if any.
func (d *Dispatcher) playback(reply func(string), play func() error) {
	if err := play(); err != nil {
		reply(err.Error())
	}
}

func (d *Dispatcher) setTempo(args string, reply func(string)) {
	bpm, err := strconv.Atoi(args)
	if err != nil {
		reply(fmt.Sprintf("%v: %q is not a number", scheduler.ErrInvalidTempo, args))
		return
	}
	effective, err := d.sched.SetTempo(bpm)
	if err != nil {
		reply(err.Error())
		return
	}
	reply(fmt.Sprintf("Tempo set to %d BPM", effective))
}

func (d *Dispatcher) setVolume(args string, reply func(string)) {
	v, err := strconv.Atoi(args)
	if err != nil {
		reply(fmt.Sprintf("%v: %q is not a number", scheduler.ErrInvalidVolume, args))
		return
	}
	effective, err := d.sched.SetVolume(v)
	if err != nil {
		reply(err.Error())
		return
	}
	reply(fmt.Sprintf("Volume set to %d%%", effective))
}

// sendControl handles "cc <controller> <value>" and sweep form
// "cc <controller> <from>-<to>", which interpolates across one bar.
// A bare name looks up a stored controller preset.
func (d *Dispatcher) sendControl(ctx context.Context, args string, reply func(string)) {
	fields := strings.Fields(args)
	if len(fields) == 1 && d.aliases != nil {
		preset, err := d.aliases.Lookup(store.KindControl, fields[0])
		if err != nil {
			reply(err.Error())
			return
		}
		fields = strings.Fields(preset)
	}
	if len(fields) != 2 {
		reply("Usage: cc <controller> <value> or cc <controller> <from>-<to>")
		return
	}
	controller, err := parseByte(fields[0])
	if err != nil {
		reply(fmt.Sprintf("Bad controller %q", fields[0]))
		return
	}

	if from, to, isSweep := strings.Cut(fields[1], "-"); isSweep && to != "" {
		d.sweep(ctx, controller, from, to, reply)
		return
	}
	value, err := parseByte(fields[1])
	if err != nil {
		reply(fmt.Sprintf("Bad controller value %q", fields[1]))
		return
	}
	if err := d.sched.SendControl(controller, value); err != nil {
		reply(err.Error())
	}
}

func (d *Dispatcher) sweep(ctx context.Context, controller uint8, fromText, toText string, reply func(string)) {
	from, err := parseByte(fromText)
	if err != nil {
		reply(fmt.Sprintf("Bad controller value %q", fromText))
		return
	}
	to, err := parseByte(toText)
	if err != nil {
		reply(fmt.Sprintf("Bad controller value %q", toText))
		return
	}
	bpm := d.sched.Tempo()
	if bpm <= 0 {
		reply("Tempo not set")
		return
	}
	barDuration := 4 * time.Minute / time.Duration(bpm)
	values := music.Sweep(from, to, sweepSteps)
	go func() {
		tick := time.NewTicker(barDuration / time.Duration(len(values)))
		defer tick.Stop()
		for _, v := range values {
			if err := d.sched.SendControl(controller, v); err != nil {
				reply(err.Error())
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()
}

func (d *Dispatcher) clear(args string, reply func(string)) {
	switch strings.ToLower(args) {
	case "", "all":
		d.sched.ClearAll(true)
		reply("Queues cleared (use rollback to restore)")
	case "chord", "progression":
		d.sched.Clear(scheduler.Progression, true)
		reply("Progression queue cleared")
	case "loop":
		d.sched.Clear(scheduler.Loop, true)
		reply("Loop queue cleared")
	default:
		reply("Usage: clear [all|chord|loop]")
	}
}

func (d *Dispatcher) rollback(args string, reply func(string)) {
	switch strings.ToLower(args) {
	case "", "all":
		d.sched.Rollback(scheduler.Progression)
		d.sched.Rollback(scheduler.Loop)
	case "chord", "progression":
		d.sched.Rollback(scheduler.Progression)
	case "loop":
		d.sched.Rollback(scheduler.Loop)
	default:
		reply("Usage: rollback [all|chord|loop]")
		return
	}
	reply("Queue restored")
}

func (d *Dispatcher) addAlias(args string, reply func(string)) {
	if d.aliases == nil {
		reply("Alias storage is not configured")
		return
	}
	name, value, _ := strings.Cut(args, " ")
	if err := d.aliases.Insert(store.KindProgression, name, strings.TrimSpace(value)); err != nil {
		reply(err.Error())
		return
	}
	if err := d.aliases.Commit(); err != nil {
		slog.Error("alias commit failed", "error", err)
	}
	reply(fmt.Sprintf("Alias %q saved", name))
}

func (d *Dispatcher) removeAlias(args string, reply func(string)) {
	if d.aliases == nil {
		reply("Alias storage is not configured")
		return
	}
	if err := d.aliases.Delete(store.KindProgression, args); err != nil {
		reply(err.Error())
		return
	}
	reply(fmt.Sprintf("Alias %q removed", args))
}

func (d *Dispatcher) listAliases(reply func(string)) {
	if d.aliases == nil {
		reply("Alias storage is not configured")
		return
	}
	aliases, err := d.aliases.List(store.KindProgression)
	if err != nil {
		reply(err.Error())
		return
	}
	if len(aliases) == 0 {
		reply("No aliases stored")
		return
	}
	names := make([]string, len(aliases))
	for i, a := range aliases {
		names[i] = a.Name
	}
	reply("Aliases: " + strings.Join(names, ", "))
}

// formatPending renders the queue view for chat.
func formatPending(pending []scheduler.Pending) string {
	if len(pending) == 0 {
		return "Queue is empty"
	}
	parts := make([]string, len(pending))
	for i, p := range pending {
		parts[i] = fmt.Sprintf("%d. [%s] %s", i+1, p.Type, p.Request)
	}
	return strings.Join(parts, " | ")
}

func parseByte(s string) (uint8, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if n > 127 {
		return 0, fmt.Errorf("value %d out of MIDI range", n)
	}
	return uint8(n), nil
}

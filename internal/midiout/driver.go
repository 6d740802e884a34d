package midiout

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ccAllNotesOff is the channel-mode controller that silences every note.
const ccAllNotesOff = 123

// Driver sends MIDI over a real output port using gomidi + rtmidi.
type Driver struct {
	mu      sync.Mutex
	drv     *rtmididrv.Driver
	out     drivers.Out
	send    func(midi.Message) error
	channel uint8
}

// Open initialises the rtmidi backend and binds the first output port whose
// name contains portName (case-insensitive). All messages are sent on the
// given MIDI channel (0-15).
func Open(portName string, channel uint8) (*Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	d := &Driver{drv: drv, channel: channel}
	if err := d.bind(portName); err != nil {
		drv.Close()
		return nil, err
	}
	return d, nil
}

// ListPorts returns the names of all available MIDI output ports.
func ListPorts() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()

	outs, err := drv.Outs()
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names, nil
}

func (d *Driver) bind(portName string) error {
	outs, err := d.drv.Outs()
	if err != nil {
		return fmt.Errorf("list outputs: %w", err)
	}

	var found drivers.Out
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), strings.ToLower(portName)) {
			found = out
			break
		}
	}
	if found == nil {
		return fmt.Errorf("%w: no output port matching %q", ErrNoOutputBound, portName)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", found.String(), err)
	}

	send, err := midi.SendTo(found)
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("sender for %q: %w", found.String(), err)
	}

	d.out = found
	d.send = send
	slog.Info("midi output bound", "port", found.String(), "channel", d.channel)
	return nil
}

func (d *Driver) sendMsg(msg midi.Message) error {
	d.mu.Lock()
	send := d.send
	d.mu.Unlock()
	if send == nil {
		return ErrNoOutputBound
	}
	return send(msg)
}

// NoteOn triggers a note at the given velocity.
func (d *Driver) NoteOn(key, velocity uint8) error {
	return d.sendMsg(midi.NoteOn(d.channel, key, velocity))
}

// NoteOff releases a note.
func (d *Driver) NoteOff(key uint8) error {
	return d.sendMsg(midi.NoteOff(d.channel, key))
}

// ControlChange sends a controller value.
func (d *Driver) ControlChange(controller, value uint8) error {
	return d.sendMsg(midi.ControlChange(d.channel, controller, value))
}

// ClockPulse sends one MIDI timing clock message.
func (d *Driver) ClockPulse() error {
	return d.sendMsg(midi.TimingClock())
}

// Start sends a MIDI start message.
func (d *Driver) Start() error {
	return d.sendMsg(midi.Start())
}

// Stop sends a MIDI stop message.
func (d *Driver) Stop() error {
	return d.sendMsg(midi.Stop())
}

// AllNotesOff silences every sounding note on the channel.
func (d *Driver) AllNotesOff() error {
	return d.sendMsg(midi.ControlChange(d.channel, ccAllNotesOff, 0))
}

// Close releases the port and the rtmidi backend.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.send = nil
	if d.out != nil {
		_ = d.out.Close()
		d.out = nil
	}
	if d.drv != nil {
		err := d.drv.Close()
		d.drv = nil
		return err
	}
	return nil
}

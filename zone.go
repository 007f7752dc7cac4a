package monoprice

import (
	"errors"
	"sync"
)

// Zone is a caller facing handle for one discovered zone. Besides
// forwarding to the Amplifier it remembers the last state it read, which
// the relative volume helpers use as their baseline.
type Zone struct {
	id  ZoneID
	amp *Amplifier

	mu   sync.Mutex
	last *ZoneState
}

func newZone(id ZoneID, amp *Amplifier) *Zone {
	return &Zone{
		id:  id,
		amp: amp,
	}
}

func (z *Zone) ID() ZoneID {
	return z.id
}

// State reads the zone. A successful read becomes the new baseline.
func (z *Zone) State() (ZoneState, error) {
	state, err := z.amp.ReadState(z.id)
	if err == nil {
		z.mu.Lock()
		z.last = &state
		z.mu.Unlock()
	}
	return state, err
}

// LastState returns the most recent successful read, if any.
func (z *Zone) LastState() (ZoneState, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.last == nil {
		return ZoneState{}, false
	}
	return *z.last, true
}

// Forget drops the baseline.
func (z *Zone) Forget() {
	z.mu.Lock()
	z.last = nil
	z.mu.Unlock()
}

// wrote keeps the baseline in step with a write. After a failed exchange the
// device state is unknown so the baseline is dropped. Rejected values never
// reached the device and leave it alone.
func (z *Zone) wrote(f Field, value int, err error) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	switch {
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrUnknownZone):
	case err != nil:
		z.last = nil
	case z.last != nil:
		next := z.last.With(f, value)
		z.last = &next
	}
	return err
}

func (z *Zone) Set(f Field, value int) error {
	return z.wrote(f, value, z.amp.Set(z.id, f, value))
}

func (z *Zone) SetPower(on bool) error {
	return z.Set(Power, boolInt(on))
}

func (z *Zone) SetMute(mute bool) error {
	return z.Set(Mute, boolInt(mute))
}

func (z *Zone) SetSource(source int) error {
	return z.Set(Source, source)
}

func (z *Zone) SetVolume(volume int) error {
	return z.Set(Volume, volume)
}

func (z *Zone) SetTreble(treble int) error {
	return z.Set(Treble, treble)
}

func (z *Zone) SetBass(bass int) error {
	return z.Set(Bass, bass)
}

func (z *Zone) SetBalance(balance int) error {
	return z.Set(Balance, balance)
}

// VolumeLevel is the last read volume as 0.0-1.0.
func (z *Zone) VolumeLevel() (float64, bool) {
	state, ok := z.LastState()
	if !ok {
		return 0, false
	}
	return VolumeFraction(state.Volume), true
}

func (z *Zone) SetVolumeLevel(level float64) error {
	volume, err := levelVolume(level)
	if err != nil {
		return err
	}
	return z.SetVolume(volume)
}

// SourceLabel is the label of the last read source.
func (z *Zone) SourceLabel() (string, bool) {
	state, ok := z.LastState()
	if !ok {
		return "", false
	}
	return z.amp.sources.Label(state.Source), true
}

func (z *Zone) SelectSource(label string) error {
	source, err := z.amp.SourceID(label)
	if err != nil {
		return err
	}
	return z.SetSource(source)
}

// VolumeUp raises the volume one step from the last read. Without a prior
// successful read it sends nothing and fails with ErrPreconditionFailed.
func (z *Zone) VolumeUp() error {
	return z.stepVolume(1)
}

// VolumeDown is the counterpart of VolumeUp.
func (z *Zone) VolumeDown() error {
	return z.stepVolume(-1)
}

func (z *Zone) stepVolume(delta int) error {
	var last *ZoneState
	if state, ok := z.LastState(); ok {
		last = &state
	}
	volume, err := z.amp.StepVolume(z.id, last, delta)
	if last == nil {
		return err
	}
	return z.wrote(Volume, volume, err)
}

func (z *Zone) Snapshot() (Snapshot, error) {
	return z.amp.Snapshot(z.id)
}

// Restore replays snap onto the zone. The baseline is dropped because a
// partial restore leaves the zone in a mixed state.
func (z *Zone) Restore(snap Snapshot) error {
	err := z.amp.Restore(z.id, snap)
	z.Forget()
	return err
}

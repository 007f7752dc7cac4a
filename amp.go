package monoprice

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Amplifier is the zone controller for one serial link. It holds the set of
// discovered zones and nothing else; every read goes to the device.
type Amplifier struct {
	link    Link
	sources *Sources
	log     zerolog.Logger

	mu    sync.RWMutex
	order []ZoneID
	zones map[ZoneID]*Zone
}

type Option func(*Amplifier)

func SourcesOption(sources *Sources) Option {
	return func(amp *Amplifier) {
		amp.sources = sources
	}
}

func LoggerOption(logger zerolog.Logger) Option {
	return func(amp *Amplifier) {
		amp.log = logger
	}
}

// New returns an Amplifier talking over link. No zone is usable until
// Discover has run.
func New(link Link, options ...Option) *Amplifier {
	amp := &Amplifier{
		link:    link,
		sources: DefaultSources(),
		log:     log.Logger,
		zones:   make(map[ZoneID]*Zone),
	}

	for _, option := range options {
		option(amp)
	}
	return amp
}

// Sources returns the label map used by SelectSource.
func (amp *Amplifier) Sources() *Sources {
	return amp.sources
}

// ZoneIDs returns the discovered zones in ascending order.
func (amp *Amplifier) ZoneIDs() []ZoneID {
	amp.mu.RLock()
	defer amp.mu.RUnlock()
	ids := make([]ZoneID, len(amp.order))
	copy(ids, amp.order)
	return ids
}

// Zones returns a handle for each discovered zone in ascending order.
func (amp *Amplifier) Zones() []*Zone {
	amp.mu.RLock()
	defer amp.mu.RUnlock()
	zones := make([]*Zone, len(amp.order))
	for i, id := range amp.order {
		zones[i] = amp.zones[id]
	}
	return zones
}

// Zone returns the handle for id.
func (amp *Amplifier) Zone(id ZoneID) (*Zone, error) {
	amp.mu.RLock()
	defer amp.mu.RUnlock()
	zone, found := amp.zones[id]
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrUnknownZone, id)
	}
	return zone, nil
}

func (amp *Amplifier) checkZone(id ZoneID) error {
	_, err := amp.Zone(id)
	return err
}

// ReadState queries zone for its current state. Link failures match
// ErrUnavailable, malformed replies match ErrCorrupt.
func (amp *Amplifier) ReadState(zone ZoneID) (ZoneState, error) {
	if err := amp.checkZone(zone); err != nil {
		return ZoneState{}, err
	}
	return amp.readState(zone)
}

func (amp *Amplifier) readState(zone ZoneID) (ZoneState, error) {
	resp, err := amp.link.SendReceive(EncodeStatusQuery(zone))
	if err != nil {
		return ZoneState{}, &ReadError{Zone: zone, Err: err}
	}
	state, err := DecodeStatus(zone, resp)
	if err != nil {
		return ZoneState{}, &ReadError{Zone: zone, Err: err}
	}
	return state, nil
}

// Set writes one field. The value is range checked before anything is sent.
// A failed write may or may not have reached the device.
func (amp *Amplifier) Set(zone ZoneID, f Field, value int) error {
	if err := amp.checkZone(zone); err != nil {
		return err
	}
	cmd, err := EncodeCommand(zone, f, value)
	if err != nil {
		return err
	}
	if _, err := amp.link.SendReceive(cmd); err != nil {
		return fmt.Errorf("zone %d set %s: %w", zone, f, err)
	}
	return nil
}

func (amp *Amplifier) SetPower(zone ZoneID, on bool) error {
	return amp.Set(zone, Power, boolInt(on))
}

func (amp *Amplifier) SetMute(zone ZoneID, mute bool) error {
	return amp.Set(zone, Mute, boolInt(mute))
}

func (amp *Amplifier) SetSource(zone ZoneID, source int) error {
	return amp.Set(zone, Source, source)
}

func (amp *Amplifier) SetVolume(zone ZoneID, volume int) error {
	return amp.Set(zone, Volume, volume)
}

func (amp *Amplifier) SetTreble(zone ZoneID, treble int) error {
	return amp.Set(zone, Treble, treble)
}

func (amp *Amplifier) SetBass(zone ZoneID, bass int) error {
	return amp.Set(zone, Bass, bass)
}

func (amp *Amplifier) SetBalance(zone ZoneID, balance int) error {
	return amp.Set(zone, Balance, balance)
}

// SetVolumeLevel sets the volume from a 0.0-1.0 level.
func (amp *Amplifier) SetVolumeLevel(zone ZoneID, level float64) error {
	volume, err := levelVolume(level)
	if err != nil {
		return err
	}
	return amp.SetVolume(zone, volume)
}

// SourceID resolves a configured label to its input number.
func (amp *Amplifier) SourceID(label string) (int, error) {
	return amp.sources.Lookup(label)
}

// SelectSource switches zone to the input with the given label.
func (amp *Amplifier) SelectSource(zone ZoneID, label string) error {
	if err := amp.checkZone(zone); err != nil {
		return err
	}
	source, err := amp.SourceID(label)
	if err != nil {
		return err
	}
	return amp.SetSource(zone, source)
}

// StepVolume moves the volume delta native units from last, clamped to
// 0-38. last must be a successful read of zone, otherwise nothing is sent
// and ErrPreconditionFailed is returned. The new volume is returned.
func (amp *Amplifier) StepVolume(zone ZoneID, last *ZoneState, delta int) (int, error) {
	if err := amp.checkZone(zone); err != nil {
		return 0, err
	}
	if last == nil || last.Zone != zone {
		return 0, fmt.Errorf("%w: zone %d volume is unknown", ErrPreconditionFailed, zone)
	}
	volume := clamp(last.Volume+delta, 0, MaxVolume)
	return volume, amp.SetVolume(zone, volume)
}

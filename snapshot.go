package monoprice

import "fmt"

// Snapshot is a captured copy of one zone's state. It is held by the caller;
// the Amplifier keeps no copy.
type Snapshot struct {
	zone  ZoneID
	state ZoneState
}

func (s Snapshot) Zone() ZoneID {
	return s.zone
}

func (s Snapshot) State() ZoneState {
	return s.state
}

// Snapshot captures zone with a single read. It fails exactly as ReadState does.
func (amp *Amplifier) Snapshot(zone ZoneID) (Snapshot, error) {
	state, err := amp.ReadState(zone)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{zone: zone, state: state}, nil
}

// Restore writes every field of snap back to zone, in Fields() order, so the
// source is correct before the volume comes up. The first failed write stops
// the restore with a *RestoreError listing the fields already applied; those
// are not rolled back.
func (amp *Amplifier) Restore(zone ZoneID, snap Snapshot) error {
	if err := amp.checkZone(zone); err != nil {
		return err
	}
	if snap.zone != zone {
		return fmt.Errorf("%w: snapshot of zone %d cannot restore zone %d", ErrInvalidValue, snap.zone, zone)
	}

	applied := make([]Field, 0, len(Fields()))
	for _, f := range Fields() {
		if err := amp.Set(zone, f, snap.state.Get(f)); err != nil {
			amp.log.Warn().Err(err).Int("zone", int(zone)).Str("field", f.String()).Msg("Restore stopped")
			return &RestoreError{Zone: zone, Field: f, Applied: applied, Err: err}
		}
		applied = append(applied, f)
	}
	amp.log.Debug().Int("zone", int(zone)).Msg("Zone restored")
	return nil
}

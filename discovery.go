package monoprice

import (
	"errors"
)

// Discover probes every candidate zone once and replaces the set of known
// zones with the ones that answered.
//
// A zone that times out is absent: its amplifier is not on the chain. A
// zone that answers with a malformed reply is kept, since something did
// answer for it, and the problem is logged. Any other link failure means
// the port itself is unusable, so discovery stops and returns it without
// touching the current zone set.
func (amp *Amplifier) Discover() ([]ZoneID, error) {
	amp.log.Info().Msg("Initializing amplifier zones")

	found := []ZoneID{}
	for _, id := range CandidateZones() {
		_, err := amp.readState(id)
		switch {
		case err == nil:
			amp.log.Info().Int("zone", int(id)).Msg("Found zone")
			found = append(found, id)
		case errors.Is(err, ErrTimeout):
			amp.log.Debug().Int("zone", int(id)).Msg("Zone is not attached")
		case errors.Is(err, ErrCorrupt):
			amp.log.Warn().Err(err).Int("zone", int(id)).Msg("Zone answered with a corrupt status")
			found = append(found, id)
		default:
			amp.log.Error().Err(err).Int("zone", int(id)).Msg("Zone discovery aborted")
			return nil, err
		}
	}

	amp.mu.Lock()
	defer amp.mu.Unlock()
	zones := make(map[ZoneID]*Zone, len(found))
	for _, id := range found {
		if zone, ok := amp.zones[id]; ok {
			zones[id] = zone
		} else {
			zones[id] = newZone(id, amp)
		}
	}
	amp.zones = zones
	amp.order = found

	amp.log.Info().Int("zones", len(found)).Msg("Amplifier discovery complete")
	ids := make([]ZoneID, len(found))
	copy(ids, found)
	return ids, nil
}

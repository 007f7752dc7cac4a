package monoprice

import "fmt"

// ZoneID is amp*10 + zone: 11-16 on the first amp, 21-26 on the second and
// 31-36 on the third.
type ZoneID int

const (
	MaxAmps      = 3
	ZonesPerAmp  = 6
	MaxZoneCount = MaxAmps * ZonesPerAmp
)

// Amp is the 1 based position of the amplifier on the daisy chain.
func (id ZoneID) Amp() int {
	return int(id) / 10
}

// Index is the 1 based zone on its amplifier.
func (id ZoneID) Index() int {
	return int(id) % 10
}

// Valid reports whether id is inside the amplifier address space. It says
// nothing about whether the zone is actually attached.
func (id ZoneID) Valid() bool {
	return id.Amp() >= 1 && id.Amp() <= MaxAmps && id.Index() >= 1 && id.Index() <= ZonesPerAmp
}

func (id ZoneID) String() string {
	return fmt.Sprintf("%d", int(id))
}

// CandidateZones is the full address space in ascending order.
func CandidateZones() []ZoneID {
	ids := make([]ZoneID, 0, MaxZoneCount)
	for amp := 1; amp <= MaxAmps; amp++ {
		for zone := 1; zone <= ZonesPerAmp; zone++ {
			ids = append(ids, ZoneID(10*amp+zone))
		}
	}
	return ids
}

// ZoneState is one decoded status reply.
type ZoneState struct {
	Zone         ZoneID `json:"zone"`
	PA           bool   `json:"pa"`
	Power        bool   `json:"power"`
	Mute         bool   `json:"mute"`
	DoNotDisturb bool   `json:"do_not_disturb"`
	Volume       int    `json:"volume"`
	Treble       int    `json:"treble"`
	Bass         int    `json:"bass"`
	Balance      int    `json:"balance"`
	Source       int    `json:"source"`
	KeyPad       bool   `json:"keypad"`
}

// Get projects a settable field out of the state. Booleans are returned as 0 or 1.
func (state ZoneState) Get(f Field) int {
	switch f {
	case Power:
		return boolInt(state.Power)
	case Source:
		return state.Source
	case Volume:
		return state.Volume
	case Mute:
		return boolInt(state.Mute)
	case Treble:
		return state.Treble
	case Bass:
		return state.Bass
	case Balance:
		return state.Balance
	}
	panic(fmt.Sprintf("monoprice: unknown field %d", int(f)))
}

// With returns a copy of state with f set to v. The value is not range checked.
func (state ZoneState) With(f Field, v int) ZoneState {
	switch f {
	case Power:
		state.Power = v != 0
	case Source:
		state.Source = v
	case Volume:
		state.Volume = v
	case Mute:
		state.Mute = v != 0
	case Treble:
		state.Treble = v
	case Bass:
		state.Bass = v
	case Balance:
		state.Balance = v
	default:
		panic(fmt.Sprintf("monoprice: unknown field %d", int(f)))
	}
	return state
}

// Validate checks every settable field against its range.
func (state ZoneState) Validate() error {
	for _, f := range Fields() {
		if err := f.Validate(state.Get(f)); err != nil {
			return err
		}
	}
	return nil
}

// Equal compares the seven settable fields. Read-only device flags are ignored.
func (state ZoneState) Equal(other ZoneState) bool {
	for _, f := range Fields() {
		if state.Get(f) != other.Get(f) {
			return false
		}
	}
	return true
}

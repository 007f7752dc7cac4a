package monoprice

import "fmt"

// Command is the two letter code the amplifier uses for a settable field.
type Command string

const (
	SetPower   Command = "PR"
	SetMute    Command = "MU"
	SetVolume  Command = "VO"
	SetTreble  Command = "TR"
	SetBass    Command = "BS"
	SetBalance Command = "BL"
	SetSource  Command = "CH"
)

// Field identifies one settable part of a ZoneState.
type Field int

// The declaration order is also the order Restore replays fields in.
const (
	Power Field = iota
	Source
	Volume
	Mute
	Treble
	Bass
	Balance

	numFields
)

// MaxVolume is the highest device-native volume.
const MaxVolume = 38

type fieldInfo struct {
	name    string
	cmd     Command
	min     int
	max     int
	flat    int
	boolean bool
}

var fieldInfos = [numFields]fieldInfo{
	Power:   {name: "power", cmd: SetPower, min: 0, max: 1, boolean: true},
	Source:  {name: "source", cmd: SetSource, min: 1, max: 6, flat: 1},
	Volume:  {name: "volume", cmd: SetVolume, min: 0, max: MaxVolume},
	Mute:    {name: "mute", cmd: SetMute, min: 0, max: 1, boolean: true},
	Treble:  {name: "treble", cmd: SetTreble, min: 0, max: 14, flat: 7},
	Bass:    {name: "bass", cmd: SetBass, min: 0, max: 14, flat: 7},
	Balance: {name: "balance", cmd: SetBalance, min: 0, max: 20, flat: 10},
}

// Fields returns every settable field in restore order.
func Fields() []Field {
	return []Field{Power, Source, Volume, Mute, Treble, Bass, Balance}
}

// ToneControls are the slider style controls of a zone.
var ToneControls = []Field{Treble, Bass, Balance}

func (f Field) valid() bool {
	return f >= 0 && f < numFields
}

func (f Field) String() string {
	if !f.valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldInfos[f].name
}

// Command returns the protocol code for f.
func (f Field) Command() Command {
	return fieldInfos[f].cmd
}

// Range returns the inclusive device-native range of f.
func (f Field) Range() (min, max int) {
	return fieldInfos[f].min, fieldInfos[f].max
}

// Flat is the neutral value of f: 7 for treble and bass, 10 for balance.
func (f Field) Flat() int {
	return fieldInfos[f].flat
}

// Boolean reports whether f is an on/off field.
func (f Field) Boolean() bool {
	return fieldInfos[f].boolean
}

// Validate fails with ErrInvalidValue when v is outside the range of f.
func (f Field) Validate(v int) error {
	if !f.valid() {
		return fmt.Errorf("%w: unknown field %d", ErrInvalidValue, int(f))
	}
	info := fieldInfos[f]
	if v < info.min || v > info.max {
		return fmt.Errorf("%w: %s %d outside [%d,%d]", ErrInvalidValue, info.name, v, info.min, info.max)
	}
	return nil
}

// ParseField looks up a field by its name ("volume") or command code ("VO").
func ParseField(str string) (Field, error) {
	for f, info := range fieldInfos {
		if info.name == str || string(info.cmd) == str {
			return Field(f), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown field %q", ErrInvalidValue, str)
}

func fieldForCommand(cmd Command) (Field, bool) {
	for f, info := range fieldInfos {
		if info.cmd == cmd {
			return Field(f), true
		}
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package monoprice

import (
	"fmt"
	"io"
	"strings"
)

const (
	queryPrefix   = '?'
	commandPrefix = '<'
	replyPrefix   = '>'

	statusLength = 22
)

// EncodeStatusQuery returns the request asking zone for its status.
func EncodeStatusQuery(zone ZoneID) []byte {
	return []byte(fmt.Sprintf("%c%02d", queryPrefix, int(zone)))
}

// EncodeCommand returns the request setting f to value on zone. Out of
// range values fail with ErrInvalidValue.
func EncodeCommand(zone ZoneID, f Field, value int) ([]byte, error) {
	if err := f.Validate(value); err != nil {
		return nil, err
	}
	var arg string
	if f.Boolean() {
		arg = flagMarshaler(value != 0)()
	} else {
		arg = pairMarshaler(value)()
	}
	return []byte(fmt.Sprintf("%c%02d%s%s", commandPrefix, int(zone), f.Command(), arg)), nil
}

func (state *ZoneState) unmarshalers() []unmarshaler {
	return []unmarshaler{
		pairUnmarshaler(&state.Zone),
		flagUnmarshaler(&state.PA),
		flagUnmarshaler(&state.Power),
		flagUnmarshaler(&state.Mute),
		flagUnmarshaler(&state.DoNotDisturb),
		pairUnmarshaler(&state.Volume),
		pairUnmarshaler(&state.Treble),
		pairUnmarshaler(&state.Bass),
		pairUnmarshaler(&state.Balance),
		pairUnmarshaler(&state.Source),
		flagUnmarshaler(&state.KeyPad),
	}
}

// Unmarshal parses the 22 digit status body (without the leading '>').
func (state *ZoneState) Unmarshal(str string) (err error) {
	unmarshalers := state.unmarshalers()
	for err == nil {
		if len(str) < pairWidth {
			err = io.ErrUnexpectedEOF
		} else if len(unmarshalers) == 0 {
			err = fmt.Errorf("%w trailing %q", ErrTooLong, str)
		} else {
			err = unmarshalers[0](str[:pairWidth])
			if err == nil {
				str = str[pairWidth:]
				unmarshalers = unmarshalers[1:]
				if len(unmarshalers) == 0 && len(str) == 0 {
					break
				}
			}
		}
	}
	return err
}

// Marshal renders the status body the way the amplifier reports it.
func (state *ZoneState) Marshal() string {
	marshalers := []marshaler{
		pairMarshaler(state.Zone),
		flagMarshaler(state.PA),
		flagMarshaler(state.Power),
		flagMarshaler(state.Mute),
		flagMarshaler(state.DoNotDisturb),
		pairMarshaler(state.Volume),
		pairMarshaler(state.Treble),
		pairMarshaler(state.Bass),
		pairMarshaler(state.Balance),
		pairMarshaler(state.Source),
		flagMarshaler(state.KeyPad),
	}

	builder := &strings.Builder{}
	for _, marshaler := range marshalers {
		builder.WriteString(marshaler())
	}
	return builder.String()
}

// EncodeStatus returns the reply line for state, including the leading '>'.
func EncodeStatus(state ZoneState) []byte {
	return []byte(string(replyPrefix) + state.Marshal())
}

// DecodeStatus parses a status reply for zone. A reply for another zone, of
// the wrong length or with a field outside its range is a *DecodeError.
func DecodeStatus(zone ZoneID, resp []byte) (ZoneState, error) {
	line := string(resp)
	if len(line) == 0 || line[0] != replyPrefix {
		return ZoneState{}, &DecodeError{Response: line, Err: fmt.Errorf("missing %q prefix", replyPrefix)}
	}
	if len(line) != statusLength+1 {
		return ZoneState{}, &DecodeError{Response: line, Err: fmt.Errorf("length %d, want %d", len(line)-1, statusLength)}
	}

	state := ZoneState{}
	if err := state.Unmarshal(line[1:]); err != nil {
		return ZoneState{}, &DecodeError{Response: line, Err: err}
	}
	if state.Zone != zone {
		return ZoneState{}, &DecodeError{Response: line, Err: fmt.Errorf("%w: got %d want %d", ErrZoneMismatch, state.Zone, zone)}
	}
	if err := state.Validate(); err != nil {
		return ZoneState{}, &DecodeError{Response: line, Err: fmt.Errorf("%w: %v", ErrOutOfRange, err)}
	}
	return state, nil
}

// Request is a parsed request line, as seen by the amplifier.
type Request struct {
	Zone  ZoneID
	Query bool
	Field Field
	Value int
}

// ParseRequest decodes a request line (without the trailing '\r').
func ParseRequest(line []byte) (Request, error) {
	str := string(line)
	if len(str) < 3 {
		return Request{}, &DecodeError{Response: str, Err: io.ErrUnexpectedEOF}
	}
	zone, err := parsePair(str[1:3])
	if err != nil {
		return Request{}, &DecodeError{Response: str, Err: err}
	}
	req := Request{Zone: ZoneID(zone)}

	switch str[0] {
	case queryPrefix:
		if len(str) != 3 {
			return Request{}, &DecodeError{Response: str, Err: ErrTooLong}
		}
		req.Query = true
		return req, nil
	case commandPrefix:
		if len(str) != 7 {
			return Request{}, &DecodeError{Response: str, Err: fmt.Errorf("command length %d", len(str))}
		}
		f, found := fieldForCommand(Command(str[3:5]))
		if !found {
			return Request{}, &DecodeError{Response: str, Err: fmt.Errorf("unknown command %q", str[3:5])}
		}
		req.Field = f
		if err := pairUnmarshaler(&req.Value)(str[5:7]); err != nil {
			return Request{}, &DecodeError{Response: str, Err: err}
		}
		if err := f.Validate(req.Value); err != nil {
			return Request{}, &DecodeError{Response: str, Err: err}
		}
		return req, nil
	}
	return Request{}, &DecodeError{Response: str, Err: fmt.Errorf("unknown request type %q", str[0])}
}

// Encode renders r back into a request line.
func (r Request) Encode() ([]byte, error) {
	if r.Query {
		return EncodeStatusQuery(r.Zone), nil
	}
	return EncodeCommand(r.Zone, r.Field, r.Value)
}

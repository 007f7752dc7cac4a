package monoprice

import (
	"errors"
	"io"
	"strconv"
	"testing"
)

func Test_pairUnmarshaler(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr error
	}{
		{"test 1", "01", 1, nil},
		{"test 2", "02", 2, nil},
		{"test 3", "38", 38, nil},
		{"short", "5", 0, strconv.ErrSyntax},
		{"plus sign", "+5", 0, strconv.ErrSyntax},
		{"minus sign", "-1", 0, strconv.ErrSyntax},
		{"leading space", " 5", 0, strconv.ErrSyntax},
		{"letters", "foo", 0, strconv.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := 0
			gotErr := pairUnmarshaler(&got)(tt.input)
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil {
				if got != tt.want {
					t.Errorf("Wanted %d got %d", tt.want, got)
				}
			}
		})
	}

	zone := ZoneID(0)
	if err := pairUnmarshaler(&zone)("36"); err != nil || zone != 36 {
		t.Errorf("Wanted zone 36 got %d (%v)", zone, err)
	}
}

func Test_flagUnmarshaler(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		wantErr error
	}{
		{"test 1", "01", true, nil},
		{"test 2", "00", false, nil},
		{"test 3", "10", false, strconv.ErrSyntax},
		{"test 4", "02", false, strconv.ErrSyntax},
		{"test 5", "foo", false, strconv.ErrSyntax},
		{"plus sign", "+1", false, strconv.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := false
			gotErr := flagUnmarshaler(&got)(tt.input)
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil {
				if got != tt.want {
					t.Errorf("Wanted %v got %v", tt.want, got)
				}
			}
		})
	}
}

func Test_Marshaler(t *testing.T) {
	tests := []struct {
		name  string
		input marshaler
		want  string
	}{
		{"test 1", pairMarshaler(1), "01"},
		{"test 2", pairMarshaler(11), "11"},
		{"test 3", flagMarshaler(true), "01"},
		{"test 4", flagMarshaler(false), "00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.input()
			if tt.want != got {
				t.Errorf("Wanted %q got %q", tt.want, got)
			}
		})
	}
}

func TestZoneState_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ZoneState
		wantErr error
	}{
		{"test 1", "1100010000131112100401", ZoneState{Zone: 11, Power: true, Volume: 13, Treble: 11, Bass: 12, Balance: 10, Source: 4, KeyPad: true}, nil},
		{"test 2", "110001000010111210040", ZoneState{}, io.ErrUnexpectedEOF},
		{"test 3", "1177010000101112100401", ZoneState{}, strconv.ErrSyntax},
		{"test 4", "11000100dfsf112100401", ZoneState{}, strconv.ErrSyntax},
		{"test 5", "", ZoneState{}, io.ErrUnexpectedEOF},
		{"test 6", "110001000013111210040110", ZoneState{}, ErrTooLong},
		{"signed volume", "1100010000+51112100401", ZoneState{}, strconv.ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZoneState{}
			gotErr := got.Unmarshal(tt.input)
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil {
				if tt.want != got {
					t.Errorf("Wanted %+v got %+v", tt.want, got)
				}
			}
		})
	}
}

func TestZoneState_Marshal(t *testing.T) {
	state := ZoneState{Zone: 11, Power: true, Volume: 13, Treble: 11, Bass: 12, Balance: 10, Source: 4, KeyPad: true}
	want := "1100010000131112100401"
	if got := state.Marshal(); got != want {
		t.Errorf("Wanted %q got %q", want, got)
	}
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name    string
		zone    ZoneID
		input   string
		want    ZoneState
		wantErr error
	}{
		{"good", 11, ">1100000000130705100301", ZoneState{Zone: 11, Volume: 13, Treble: 7, Bass: 5, Balance: 10, Source: 3, KeyPad: true}, nil},
		{"second amp", 23, ">2300010001381414200600", ZoneState{Zone: 23, Power: true, DoNotDisturb: true, Volume: 38, Treble: 14, Bass: 14, Balance: 20, Source: 6}, nil},
		{"zone mismatch", 12, ">1100000000130705100301", ZoneState{}, ErrZoneMismatch},
		{"missing prefix", 11, "1100000000130705100301", ZoneState{}, ErrDecode},
		{"short", 11, ">11000000001307051003", ZoneState{}, ErrDecode},
		{"long", 11, ">110000000013070510030100", ZoneState{}, ErrDecode},
		{"volume out of range", 11, ">1100000000390705100301", ZoneState{}, ErrOutOfRange},
		{"treble out of range", 11, ">1100000000131505100301", ZoneState{}, ErrOutOfRange},
		{"balance out of range", 11, ">1100000000130705210301", ZoneState{}, ErrOutOfRange},
		{"source zero", 11, ">1100000000130705100001", ZoneState{}, ErrOutOfRange},
		{"bad bool", 11, ">1100020000130705100301", ZoneState{}, strconv.ErrSyntax},
		{"signed volume", 11, ">1100000000+50705100301", ZoneState{}, strconv.ErrSyntax},
		{"empty", 11, "", ZoneState{}, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := DecodeStatus(tt.zone, []byte(tt.input))
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil {
				if tt.want != got {
					t.Errorf("Wanted %+v got %+v", tt.want, got)
				}
			} else if !errors.Is(gotErr, ErrDecode) {
				t.Errorf("Wanted a decode error got %v", gotErr)
			}
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		zone    ZoneID
		field   Field
		value   int
		want    string
		wantErr error
	}{
		{"power on", 11, Power, 1, "<11PR01", nil},
		{"power off", 11, Power, 0, "<11PR00", nil},
		{"mute", 12, Mute, 1, "<12MU01", nil},
		{"volume", 21, Volume, 5, "<21VO05", nil},
		{"volume max", 21, Volume, 38, "<21VO38", nil},
		{"treble", 13, Treble, 7, "<13TR07", nil},
		{"bass", 14, Bass, 14, "<14BS14", nil},
		{"balance", 36, Balance, 20, "<36BL20", nil},
		{"source", 15, Source, 6, "<15CH06", nil},
		{"volume too high", 11, Volume, 39, "", ErrInvalidValue},
		{"volume negative", 11, Volume, -1, "", ErrInvalidValue},
		{"treble too high", 11, Treble, 15, "", ErrInvalidValue},
		{"bass too high", 11, Bass, 15, "", ErrInvalidValue},
		{"balance too high", 11, Balance, 21, "", ErrInvalidValue},
		{"source zero", 11, Source, 0, "", ErrInvalidValue},
		{"source seven", 11, Source, 7, "", ErrInvalidValue},
		{"power two", 11, Power, 2, "", ErrInvalidValue},
		{"unknown field", 11, Field(42), 0, "", ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := EncodeCommand(tt.zone, tt.field, tt.value)
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil && string(got) != tt.want {
				t.Errorf("Wanted %q got %q", tt.want, string(got))
			}
		})
	}
}

func TestEncodeStatusQuery(t *testing.T) {
	if got := string(EncodeStatusQuery(31)); got != "?31" {
		t.Errorf("Wanted %q got %q", "?31", got)
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Request
		wantErr error
	}{
		{"query", "?11", Request{Zone: 11, Query: true}, nil},
		{"volume", "<21VO20", Request{Zone: 21, Field: Volume, Value: 20}, nil},
		{"power", "<11PR01", Request{Zone: 11, Field: Power, Value: 1}, nil},
		{"unknown command", "<11ZZ01", Request{}, ErrDecode},
		{"out of range", "<11VO40", Request{}, ErrInvalidValue},
		{"short", "?1", Request{}, ErrDecode},
		{"bad prefix", "!1101", Request{}, ErrDecode},
		{"signed value", "<11VO+5", Request{}, ErrDecode},
		{"signed zone", "?+1", Request{}, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotErr := ParseRequest([]byte(tt.input))
			if !errors.Is(gotErr, tt.wantErr) {
				t.Errorf("Wanted error %v got %v", tt.wantErr, gotErr)
			} else if gotErr == nil {
				if got != tt.want {
					t.Errorf("Wanted %+v got %+v", tt.want, got)
				}
				line, err := got.Encode()
				if err != nil || string(line) != tt.input {
					t.Errorf("Wanted %q got %q (%v)", tt.input, string(line), err)
				}
			}
		})
	}
}

func TestParseField(t *testing.T) {
	for _, f := range Fields() {
		got, err := ParseField(f.String())
		if err != nil || got != f {
			t.Errorf("ParseField(%q) = %v, %v", f.String(), got, err)
		}
		got, err = ParseField(string(f.Command()))
		if err != nil || got != f {
			t.Errorf("ParseField(%q) = %v, %v", f.Command(), got, err)
		}
	}
	if _, err := ParseField("loudness"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Wanted %v got %v", ErrInvalidValue, err)
	}
}

func TestFieldRanges(t *testing.T) {
	tests := []struct {
		field    Field
		min, max int
		flat     int
	}{
		{Volume, 0, 38, 0},
		{Source, 1, 6, 1},
		{Treble, 0, 14, 7},
		{Bass, 0, 14, 7},
		{Balance, 0, 20, 10},
	}
	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			min, max := tt.field.Range()
			if min != tt.min || max != tt.max || tt.field.Flat() != tt.flat {
				t.Errorf("Wanted [%d,%d] flat %d got [%d,%d] flat %d", tt.min, tt.max, tt.flat, min, max, tt.field.Flat())
			}
		})
	}
}

package mqtt

import (
	"errors"
	"reflect"
	"testing"

	monoprice "github.com/abates/monoprice-zones"
)

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "/monoprice/"}

	tests := []struct {
		got  string
		want string
	}{
		{topics.Status(), "monoprice/status"},
		{topics.State(21), "monoprice/zone/21/state"},
		{topics.Set(21, monoprice.Treble), "monoprice/zone/21/set/treble"},
		{topics.Snapshot(21), "monoprice/zone/21/snapshot"},
		{topics.Restore(21), "monoprice/zone/21/restore"},
		{topics.Error(21), "monoprice/zone/21/error"},
	}
	for _, test := range tests {
		if test.got != test.want {
			t.Errorf("Wanted %q got %q", test.want, test.got)
		}
	}

	want := []string{"monoprice/zone/+/set/+", "monoprice/zone/+/snapshot", "monoprice/zone/+/restore"}
	if got := topics.Commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("Wanted %v got %v", want, got)
	}
}

func TestTopicsParse(t *testing.T) {
	topics := Topics{Prefix: "monoprice"}

	tests := []struct {
		topic   string
		want    ZoneTopic
		wantErr error
	}{
		{"monoprice/zone/11/set/volume", ZoneTopic{Zone: 11, Action: ActionSet, Field: monoprice.Volume}, nil},
		{"monoprice/zone/36/set/CH", ZoneTopic{Zone: 36, Action: ActionSet, Field: monoprice.Source}, nil},
		{"monoprice/zone/12/snapshot", ZoneTopic{Zone: 12, Action: ActionSnapshot}, nil},
		{"monoprice/zone/12/restore", ZoneTopic{Zone: 12, Action: ActionRestore}, nil},
		{"other/zone/11/restore", ZoneTopic{}, ErrInvalidTopic},
		{"monoprice/zone/xx/restore", ZoneTopic{}, ErrInvalidTopic},
		{"monoprice/zone/11/set/loudness", ZoneTopic{}, ErrInvalidTopic},
		{"monoprice/zone/11/state", ZoneTopic{}, ErrInvalidTopic},
		{"monoprice/zone/11/set", ZoneTopic{}, ErrInvalidTopic},
	}

	for _, test := range tests {
		t.Run(test.topic, func(t *testing.T) {
			got, err := topics.Parse(test.topic)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Wanted error %v got %v", test.wantErr, err)
			}
			if got != test.want {
				t.Errorf("Wanted %+v got %+v", test.want, got)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		field   monoprice.Field
		input   string
		want    int
		wantErr error
	}{
		{monoprice.Power, "on", 1, nil},
		{monoprice.Power, "OFF", 0, nil},
		{monoprice.Mute, "1", 1, nil},
		{monoprice.Mute, "false", 0, nil},
		{monoprice.Mute, "yes", 0, ErrInvalidPayload},
		{monoprice.Volume, "12", 12, nil},
		{monoprice.Bass, "x", 0, ErrInvalidPayload},
	}

	for _, test := range tests {
		got, err := ParseValue(test.field, test.input)
		if !errors.Is(err, test.wantErr) {
			t.Errorf("%s %q: wanted error %v got %v", test.field, test.input, test.wantErr, err)
			continue
		}
		if got != test.want {
			t.Errorf("%s %q: wanted %d got %d", test.field, test.input, test.want, got)
		}
	}
}

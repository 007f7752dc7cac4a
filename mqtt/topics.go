package mqtt

import (
	"fmt"
	"strconv"
	"strings"

	monoprice "github.com/abates/monoprice-zones"
)

// Actions carried in the last segments of a zone topic.
const (
	ActionState    = "state"
	ActionSet      = "set"
	ActionSnapshot = "snapshot"
	ActionRestore  = "restore"
	ActionError    = "error"
)

// Topics builds the topic tree under Prefix:
//
//	<prefix>/status                    online/offline, retained
//	<prefix>/zone/11/state             JSON zone state, retained
//	<prefix>/zone/11/set/volume        command, payload is the value
//	<prefix>/zone/11/snapshot          command, payload ignored
//	<prefix>/zone/11/restore           command, payload ignored
//	<prefix>/zone/11/error             last command failure
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	return strings.Trim(t.Prefix, "/")
}

func (t Topics) Status() string {
	return t.prefix() + "/status"
}

func (t Topics) zone(zone monoprice.ZoneID) string {
	return fmt.Sprintf("%s/zone/%d", t.prefix(), zone)
}

func (t Topics) State(zone monoprice.ZoneID) string {
	return t.zone(zone) + "/" + ActionState
}

func (t Topics) Set(zone monoprice.ZoneID, f monoprice.Field) string {
	return t.zone(zone) + "/" + ActionSet + "/" + f.String()
}

func (t Topics) Snapshot(zone monoprice.ZoneID) string {
	return t.zone(zone) + "/" + ActionSnapshot
}

func (t Topics) Restore(zone monoprice.ZoneID) string {
	return t.zone(zone) + "/" + ActionRestore
}

func (t Topics) Error(zone monoprice.ZoneID) string {
	return t.zone(zone) + "/" + ActionError
}

// Commands are the wildcard filters the bridge subscribes to.
func (t Topics) Commands() []string {
	return []string{
		t.prefix() + "/zone/+/" + ActionSet + "/+",
		t.prefix() + "/zone/+/" + ActionSnapshot,
		t.prefix() + "/zone/+/" + ActionRestore,
	}
}

// ZoneTopic is a parsed zone command topic.
type ZoneTopic struct {
	Zone   monoprice.ZoneID
	Action string
	Field  monoprice.Field
}

// Parse splits a zone command topic into its parts.
func (t Topics) Parse(topic string) (ZoneTopic, error) {
	rest := strings.TrimPrefix(topic, t.prefix()+"/zone/")
	if rest == topic {
		return ZoneTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	parts := strings.Split(rest, "/")

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return ZoneTopic{}, fmt.Errorf("%w: zone in %q", ErrInvalidTopic, topic)
	}
	zt := ZoneTopic{Zone: monoprice.ZoneID(id)}

	switch {
	case len(parts) == 3 && parts[1] == ActionSet:
		f, err := monoprice.ParseField(parts[2])
		if err != nil {
			return ZoneTopic{}, fmt.Errorf("%w: %v", ErrInvalidTopic, err)
		}
		zt.Action = ActionSet
		zt.Field = f
	case len(parts) == 2 && (parts[1] == ActionSnapshot || parts[1] == ActionRestore):
		zt.Action = parts[1]
	default:
		return ZoneTopic{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return zt, nil
}

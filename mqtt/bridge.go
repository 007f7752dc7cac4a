// Package mqtt bridges an Amplifier onto an MQTT broker. Zone state is
// polled and published retained; commands arrive on per-zone topics.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	monoprice "github.com/abates/monoprice-zones"
)

const DefaultPollInterval = 10 * time.Second

var ErrNoSnapshot = errors.New("no snapshot stored for zone")

type Option func(*Bridge)

func TopicsOption(topics Topics) Option {
	return func(b *Bridge) {
		b.topics = topics
	}
}

func PollIntervalOption(interval time.Duration) Option {
	return func(b *Bridge) {
		b.interval = interval
	}
}

func LoggerOption(logger zerolog.Logger) Option {
	return func(b *Bridge) {
		b.log = logger
	}
}

type Bridge struct {
	client   Client
	amp      *monoprice.Amplifier
	topics   Topics
	interval time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	snapshots map[monoprice.ZoneID]monoprice.Snapshot
}

func NewBridge(client Client, amp *monoprice.Amplifier, options ...Option) *Bridge {
	b := &Bridge{
		client:    client,
		amp:       amp,
		topics:    Topics{Prefix: "monoprice"},
		interval:  DefaultPollInterval,
		log:       log.Logger,
		snapshots: make(map[monoprice.ZoneID]monoprice.Snapshot),
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Subscribe registers the command handlers.
func (b *Bridge) Subscribe() error {
	for _, filter := range b.topics.Commands() {
		if err := b.client.Subscribe(filter, b.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Run publishes every zone's state once per poll interval until ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.PublishAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.PublishAll()
		}
	}
}

// PublishAll reads and publishes every discovered zone. A zone that cannot
// be read is logged and skipped; its retained state is left as it was.
func (b *Bridge) PublishAll() {
	for _, zone := range b.amp.Zones() {
		if err := b.publishState(zone); err != nil {
			b.log.Warn().Err(err).Int("zone", int(zone.ID())).Msg("Failed to publish zone state")
		}
	}
}

func (b *Bridge) publishState(zone *monoprice.Zone) error {
	state, err := zone.State()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return b.client.Publish(b.topics.State(zone.ID()), payload, true)
}

// Handle processes one command message. Failures are also published on the
// zone's error topic so remote callers can see them.
func (b *Bridge) Handle(topic string, payload []byte) error {
	zt, err := b.topics.Parse(topic)
	if err != nil {
		return err
	}
	zone, err := b.amp.Zone(zt.Zone)
	if err != nil {
		return err
	}

	switch zt.Action {
	case ActionSet:
		err = b.set(zone, zt.Field, strings.TrimSpace(string(payload)))
	case ActionSnapshot:
		err = b.snapshot(zone)
	case ActionRestore:
		err = b.restore(zone)
	}

	if err != nil {
		b.client.Publish(b.topics.Error(zone.ID()), []byte(err.Error()), false)
		return err
	}
	return b.publishState(zone)
}

func (b *Bridge) set(zone *monoprice.Zone, f monoprice.Field, value string) error {
	if f == monoprice.Volume {
		switch value {
		case "up":
			return zone.VolumeUp()
		case "down":
			return zone.VolumeDown()
		}
	}
	v, err := ParseValue(f, value)
	if err != nil {
		return err
	}
	return zone.Set(f, v)
}

// ParseValue reads a command payload. Boolean fields accept on/off and
// true/false as well as 1/0.
func ParseValue(f monoprice.Field, value string) (int, error) {
	if f.Boolean() {
		switch strings.ToLower(value) {
		case "on":
			return 1, nil
		case "off":
			return 0, nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q", ErrInvalidPayload, f, value)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidPayload, f, value)
	}
	return v, nil
}

func (b *Bridge) snapshot(zone *monoprice.Zone) error {
	snap, err := zone.Snapshot()
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.snapshots[zone.ID()] = snap
	b.mu.Unlock()
	return nil
}

func (b *Bridge) restore(zone *monoprice.Zone) error {
	b.mu.Lock()
	snap, found := b.snapshots[zone.ID()]
	b.mu.Unlock()
	if !found {
		return fmt.Errorf("%w %d", ErrNoSnapshot, zone.ID())
	}
	return zone.Restore(snap)
}

package monoprice_test

import (
	"errors"
	"io"
	"reflect"
	"testing"

	monoprice "github.com/abates/monoprice-zones"
	"github.com/abates/monoprice-zones/ampsim"
)

func TestDiscover(t *testing.T) {
	tests := []struct {
		name string
		sim  *ampsim.Amp
		want []monoprice.ZoneID
	}{
		{"sparse", ampsim.New(21, 11, 12), []monoprice.ZoneID{11, 12, 21}},
		{"one amp", ampsim.NewChain(1), []monoprice.ZoneID{11, 12, 13, 14, 15, 16}},
		{"full chain", ampsim.NewChain(3), monoprice.CandidateZones()},
		{"nothing attached", ampsim.New(), []monoprice.ZoneID{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			transport := monoprice.NewTransport(test.sim)
			defer transport.Close()
			amp := monoprice.New(transport)

			got, err := amp.Discover()
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("Wanted %v got %v", test.want, got)
			}
			if ids := amp.ZoneIDs(); !reflect.DeepEqual(ids, test.want) {
				t.Errorf("Wanted registered %v got %v", test.want, ids)
			}
			if n := len(test.sim.Requests()); n != monoprice.MaxZoneCount {
				t.Errorf("Wanted %d probes got %d", monoprice.MaxZoneCount, n)
			}
		})
	}
}

func TestDiscoverAbortsOnDisconnect(t *testing.T) {
	sim := ampsim.New(11, 12, 21)
	sim.Disconnect()
	transport := monoprice.NewTransport(sim)
	defer transport.Close()
	amp := monoprice.New(transport)

	got, err := amp.Discover()
	if !errors.Is(err, monoprice.ErrDisconnected) {
		t.Fatalf("Wanted %v got %v", monoprice.ErrDisconnected, err)
	}
	if got != nil {
		t.Errorf("Wanted no zones got %v", got)
	}
	if n := len(sim.Requests()); n != 0 {
		t.Errorf("Wanted no request to complete got %d", n)
	}
}

func TestDiscoverAbortsMidway(t *testing.T) {
	sim := ampsim.New(11, 12, 21)
	sim.Fail("?13", ampsim.FailDisconnect, 1)
	transport := monoprice.NewTransport(sim)
	defer transport.Close()
	amp := monoprice.New(transport)

	if _, err := amp.Discover(); !errors.Is(err, monoprice.ErrDisconnected) {
		t.Fatalf("Wanted %v got %v", monoprice.ErrDisconnected, err)
	}
	want := []string{"?11", "?12", "?13"}
	if got := sim.Requests(); !reflect.DeepEqual(got, want) {
		t.Errorf("Wanted probes %v got %v", want, got)
	}
	if ids := amp.ZoneIDs(); len(ids) != 0 {
		t.Errorf("Wanted no registered zones got %v", ids)
	}
}

func TestDiscoverKeepsCorruptZones(t *testing.T) {
	sim := ampsim.New(11, 12)
	sim.Fail("?12", ampsim.FailCorrupt, 1)
	transport := monoprice.NewTransport(sim)
	defer transport.Close()
	amp := monoprice.New(transport)

	got, err := amp.Discover()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []monoprice.ZoneID{11, 12}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Wanted %v got %v", want, got)
	}
}

func TestRediscover(t *testing.T) {
	var sim *ampsim.Amp
	amps := 1
	open := func() (io.ReadWriter, error) {
		sim = ampsim.NewChain(amps)
		return sim, nil
	}
	transport, err := monoprice.Dial(open)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer transport.Close()
	amp := monoprice.New(transport)

	if _, err := amp.Discover(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	zone, err := amp.Zone(11)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	amps = 2
	if err := transport.Reopen(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := amp.Discover()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != 12 {
		t.Errorf("Wanted 12 zones got %v", got)
	}
	if again, _ := amp.Zone(11); again != zone {
		t.Errorf("Wanted the zone handle to survive rediscovery")
	}
	if _, err := amp.ReadState(26); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

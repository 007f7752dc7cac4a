// Package ampsim simulates a chain of Monoprice 6-zone amplifiers on the
// far side of a serial port. It speaks the same line protocol as the real
// device and can inject the faults a real link produces.
package ampsim

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	monoprice "github.com/abates/monoprice-zones"
)

var ErrPortClosed = errors.New("ampsim: port closed")

// FailMode selects how a matched request misbehaves.
type FailMode int

const (
	// FailSilent swallows the request: no echo, no reply, no effect.
	FailSilent FailMode = iota
	// FailDisconnect fails the write and leaves the port broken.
	FailDisconnect
	// FailCorrupt answers a query with the status of another zone.
	FailCorrupt
	// FailEcho echoes a different request.
	FailEcho
	// FailLate holds back the echo and reply until the port has been read
	// empty once, as if the amplifier answered after the caller gave up.
	FailLate
)

type failure struct {
	match string
	mode  FailMode
	count int
}

// Amp is an in-memory port. Reads with nothing buffered return io.EOF,
// which is what a serial port with a read timeout does when the device
// stays silent.
type Amp struct {
	mu sync.Mutex

	zones    map[monoprice.ZoneID]monoprice.ZoneState
	amps     map[int]bool
	line     []byte
	out      []byte
	late     []byte
	pending  int
	failures []*failure
	closed   bool
	broken   bool

	requests    []string
	interleaved int
}

// DefaultState is the state every simulated zone starts in.
func DefaultState(id monoprice.ZoneID) monoprice.ZoneState {
	return monoprice.ZoneState{
		Zone:    id,
		Volume:  20,
		Treble:  monoprice.Treble.Flat(),
		Bass:    monoprice.Bass.Flat(),
		Balance: monoprice.Balance.Flat(),
		Source:  1,
	}
}

// New returns a simulator where only the given zones answer.
func New(zones ...monoprice.ZoneID) *Amp {
	a := &Amp{
		zones: make(map[monoprice.ZoneID]monoprice.ZoneState),
		amps:  make(map[int]bool),
	}
	for _, id := range zones {
		a.zones[id] = DefaultState(id)
		a.amps[id.Amp()] = true
	}
	return a
}

// NewChain returns a simulator with every zone of the first amps amplifiers.
func NewChain(amps int) *Amp {
	ids := []monoprice.ZoneID{}
	for _, id := range monoprice.CandidateZones() {
		if id.Amp() <= amps {
			ids = append(ids, id)
		}
	}
	return New(ids...)
}

// State returns the simulated state of a zone.
func (a *Amp) State(id monoprice.ZoneID) (monoprice.ZoneState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	state, found := a.zones[id]
	return state, found
}

// SetState overwrites the simulated state of an attached zone.
func (a *Amp) SetState(state monoprice.ZoneState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, found := a.zones[state.Zone]; found {
		a.zones[state.Zone] = state
	}
}

// Fail makes the next count requests containing match misbehave.
func (a *Amp) Fail(match string, mode FailMode, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, &failure{match: match, mode: mode, count: count})
}

// Disconnect breaks the port; every later write fails.
func (a *Amp) Disconnect() {
	a.mu.Lock()
	a.broken = true
	a.mu.Unlock()
}

// Inject queues raw bytes for the reader, as line noise would.
func (a *Amp) Inject(data string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out = append(a.out, data...)
}

// Requests lists every complete request line received, in order.
func (a *Amp) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

// Interleaved counts requests that started while the reply to an earlier
// request was still unread.
func (a *Amp) Interleaved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interleaved
}

func (a *Amp) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.broken {
		return 0, ErrPortClosed
	}
	if len(a.line) == 0 && a.pending > 0 {
		a.interleaved++
	}

	for i, c := range p {
		if c != '\r' {
			a.line = append(a.line, c)
			continue
		}
		line := string(a.line)
		a.line = a.line[:0]
		if err := a.handle(line); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (a *Amp) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrPortClosed
	}
	if len(a.out) == 0 {
		a.out, a.late = a.late, nil
		return 0, io.EOF
	}
	n := copy(p, a.out)
	a.out = a.out[n:]
	a.pending -= n
	if a.pending < 0 {
		a.pending = 0
	}
	return n, nil
}

func (a *Amp) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Amp) failure(line string) (FailMode, bool) {
	for i, f := range a.failures {
		if strings.Contains(line, f.match) {
			f.count--
			if f.count <= 0 {
				a.failures = append(a.failures[:i], a.failures[i+1:]...)
			}
			return f.mode, true
		}
	}
	return 0, false
}

func (a *Amp) reply(lines ...[]byte) {
	var buf bytes.Buffer
	for _, line := range lines {
		buf.Write(line)
	}
	a.out = append(a.out, buf.Bytes()...)
	// everything up to the trailing prompt must be read before the next request
	a.pending = len(a.out) - 1
}

func (a *Amp) handle(line string) error {
	a.requests = append(a.requests, line)

	mode, failed := a.failure(line)
	if failed {
		switch mode {
		case FailSilent:
			return nil
		case FailDisconnect:
			a.broken = true
			return ErrPortClosed
		case FailEcho:
			a.reply([]byte(line+"X"), []byte("\r\n#"))
			return nil
		}
	}

	req, err := monoprice.ParseRequest([]byte(line))
	if err != nil || !a.amps[req.Zone.Amp()] {
		// the first amp echoes everything but nobody answers
		if len(a.amps) > 0 {
			a.reply([]byte(line), []byte("\r\n#"))
		}
		return nil
	}

	state, attached := a.zones[req.Zone]
	if req.Query {
		if !attached {
			a.reply([]byte(line), []byte("\r\n#"))
			return nil
		}
		if failed && mode == FailCorrupt {
			state.Zone = otherZone(req.Zone)
		}
		if failed && mode == FailLate {
			a.late = append(a.late, line+"\r\n#"+string(monoprice.EncodeStatus(state))+"\r\r\n#"...)
			return nil
		}
		a.reply([]byte(line), []byte("\r\n#"), monoprice.EncodeStatus(state), []byte("\r\r\n#"))
		return nil
	}

	if attached {
		a.zones[req.Zone] = state.With(req.Field, req.Value)
	}
	if failed && mode == FailLate {
		a.late = append(a.late, line+"\r\n#"...)
		return nil
	}
	a.reply([]byte(line), []byte("\r\n#"))
	return nil
}

func otherZone(id monoprice.ZoneID) monoprice.ZoneID {
	if id.Index() == monoprice.ZonesPerAmp {
		return id - 1
	}
	return id + 1
}

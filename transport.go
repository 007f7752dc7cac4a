package monoprice

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 2 * time.Second

	maxLineLength = 64
	// idlePause spaces out reads on ports that return at once when empty.
	idlePause = time.Millisecond
)

var (
	errDeadline = errors.New("exchange deadline exceeded")
	errIdle     = errors.New("port idle")
)

// Link performs one request/response exchange with the amplifier.
type Link interface {
	SendReceive(request []byte) ([]byte, error)
}

// OpenFunc opens the underlying port. It is called once by Dial and again
// on every Reopen.
type OpenFunc func() (io.ReadWriter, error)

// Observer is notified around every exchange. Calls are made from the
// exchange goroutine, so they are never concurrent.
type Observer interface {
	ExchangeStarted(request []byte)
	ExchangeFinished(request, response []byte, err error, elapsed time.Duration)
}

// portEvent is something the port reader saw: a line, a read that came back
// empty (errIdle), an over-long line (ErrTooLong) or a fatal read error.
type portEvent struct {
	line string
	err  error
	at   time.Time
}

type exchangeResult struct {
	response []byte
	err      error
}

type exchangeReq struct {
	request []byte
	resp    chan<- exchangeResult
}

// Transport owns the serial port. Exchanges are queued first come first
// served and run one at a time; a request is never written before the
// previous reply has been read or timed out.
type Transport struct {
	open     OpenFunc
	timeout  time.Duration
	verbose  bool
	observer Observer
	log      zerolog.Logger

	writeCh chan exchangeReq
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	port   io.ReadWriter
	events chan portEvent
	stop   chan struct{}
	broken error
	// unsettled is set when an exchange failed and a late reply may still
	// be on its way.
	unsettled bool
	failedAt  time.Time
}

type TransportOption func(*Transport)

// VerboseOption logs every line sent and received at trace level.
func VerboseOption() TransportOption {
	return func(t *Transport) {
		t.verbose = true
	}
}

// TimeoutOption bounds a whole exchange, even on a port whose reads block.
// Zero removes the bound and leaves it to the port's own read timeout.
func TimeoutOption(timeout time.Duration) TransportOption {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

func ObserverOption(observer Observer) TransportOption {
	return func(t *Transport) {
		t.observer = observer
	}
}

func TransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = logger
	}
}

// NewTransport wraps an already open port. Reopen is not available on the
// returned Transport.
func NewTransport(port io.ReadWriter, options ...TransportOption) *Transport {
	t := newTransport(nil, options...)
	t.setPort(port)
	go t.writeLoop()
	return t
}

// Dial opens the port with open and holds it until Close.
func Dial(open OpenFunc, options ...TransportOption) (*Transport, error) {
	t := newTransport(open, options...)
	port, err := open()
	if err != nil {
		return nil, &LinkError{Op: "open", Kind: ErrDisconnected, Err: err}
	}
	t.setPort(port)
	go t.writeLoop()
	return t, nil
}

func newTransport(open OpenFunc, options ...TransportOption) *Transport {
	t := &Transport{
		open:    open,
		timeout: DefaultTimeout,
		log:     log.Logger,
		writeCh: make(chan exchangeReq),
		done:    make(chan struct{}),
	}
	for _, option := range options {
		option(t)
	}
	return t
}

func (t *Transport) setPort(port io.ReadWriter) {
	t.stopReader()
	t.port = port
	t.events = make(chan portEvent)
	t.stop = make(chan struct{})
	t.broken = nil
	t.unsettled = false
	go readPort(port, t.events, t.stop)
}

func (t *Transport) stopReader() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// SendReceive writes request and blocks until its reply is read. Commands
// return an empty response once the echo has been verified; queries return
// the reply line.
func (t *Transport) SendReceive(request []byte) ([]byte, error) {
	ch := make(chan exchangeResult, 1)
	select {
	case t.writeCh <- exchangeReq{request: request, resp: ch}:
	case <-t.done:
		return nil, &LinkError{Op: "send", Kind: ErrDisconnected, Err: ErrClosed}
	}
	resp := <-ch
	return resp.response, resp.err
}

// Reopen replaces a lost port with a freshly opened one. It waits for any
// exchange in progress to finish.
func (t *Transport) Reopen() error {
	if t.open == nil {
		return &LinkError{Op: "reopen", Kind: ErrDisconnected, Err: errors.New("no opener configured")}
	}
	select {
	case <-t.done:
		return &LinkError{Op: "reopen", Kind: ErrDisconnected, Err: ErrClosed}
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if closer, ok := t.port.(io.Closer); ok {
		closer.Close()
	}
	t.stopReader()
	port, err := t.open()
	if err != nil {
		t.broken = err
		return &LinkError{Op: "reopen", Kind: ErrDisconnected, Err: err}
	}
	t.setPort(port)
	t.log.Info().Msg("serial link reopened")
	return nil
}

// Close stops the exchange loop and closes the port.
func (t *Transport) Close() (err error) {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		defer t.mu.Unlock()
		if closer, ok := t.port.(io.Closer); ok {
			err = closer.Close()
		}
		t.stopReader()
		t.broken = ErrClosed
	})
	return err
}

func (t *Transport) writeLoop() {
	for {
		select {
		case req := <-t.writeCh:
			resp, err := t.exchange(req.request)
			req.resp <- exchangeResult{response: resp, err: err}
		case <-t.done:
			return
		}
	}
}

func (t *Transport) exchange(request []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.broken != nil {
		return nil, &LinkError{Op: "exchange", Kind: ErrDisconnected, Err: t.broken}
	}

	start := time.Now()
	if t.observer != nil {
		t.observer.ExchangeStarted(request)
	}
	resp, err := t.roundTrip(request)
	if t.observer != nil {
		t.observer.ExchangeFinished(request, resp, err, time.Since(start))
	}

	var de *DecodeError
	if errors.Is(err, ErrTimeout) || errors.As(err, &de) {
		t.unsettled = true
		t.failedAt = time.Now()
	}
	return resp, err
}

func (t *Transport) roundTrip(request []byte) ([]byte, error) {
	if t.unsettled {
		if err := t.settle(); err != nil {
			return nil, err
		}
	}

	cmd := string(request)
	if t.verbose {
		t.log.Trace().Str("line", cmd).Msg("TX")
	}
	start := time.Now()
	if _, err := t.port.Write(append([]byte(cmd), '\r')); err != nil {
		return nil, t.linkError("write", err)
	}
	written := time.Now()

	var expired <-chan time.Time
	if t.timeout > 0 {
		timer := time.NewTimer(time.Until(start.Add(t.timeout)))
		defer timer.Stop()
		expired = timer.C
	}

	// wait for command to be echoed back, skipping line noise and replies
	// that belong to an earlier exchange
	var skipped *DecodeError
	for {
		ev, err := t.next(start, written, expired)
		if err != nil {
			if skipped != nil && errors.Is(err, ErrTimeout) {
				return nil, skipped
			}
			return nil, err
		}
		if ev.err == nil && ev.line == cmd {
			break
		}
		t.log.Debug().Str("request", cmd).Str("line", ev.line).Msg("Skipping unexpected line")
		if skipped == nil {
			skipped = unexpected(ev)
		}
	}
	if len(cmd) == 0 || cmd[0] != queryPrefix {
		return []byte{}, nil
	}

	ev, err := t.next(start, written, expired)
	if err != nil {
		return nil, err
	}
	if ev.err != nil {
		return nil, unexpected(ev)
	}
	return []byte(ev.line), nil
}

// next returns the first line that arrived after the request went out. Lines
// completed before start and empty reads begun before written are stale.
func (t *Transport) next(start, written time.Time, expired <-chan time.Time) (portEvent, error) {
	for {
		select {
		case <-expired:
			return portEvent{}, t.linkError("read", errDeadline)
		case <-t.done:
			return portEvent{}, &LinkError{Op: "read", Kind: ErrDisconnected, Err: ErrClosed}
		case ev := <-t.events:
			switch {
			case errors.Is(ev.err, errIdle):
				if ev.at.Before(written) {
					continue
				}
				return portEvent{}, t.linkError("read", ev.err)
			case ev.err != nil && !errors.Is(ev.err, ErrTooLong):
				return portEvent{}, t.linkError("read", ev.err)
			case ev.at.Before(start):
				if t.verbose {
					t.log.Trace().Str("line", ev.line).Msg("RX stale")
				}
				continue
			}
			if t.verbose {
				t.log.Trace().Str("line", ev.line).Msg("RX")
			}
			return ev, nil
		}
	}
}

// settle drops whatever the port sends until it has been quiet once since
// the last failed exchange, so a late reply is never read as the answer to
// the next request. It gives up after the exchange timeout.
func (t *Transport) settle() error {
	t.unsettled = false

	var expired <-chan time.Time
	if t.timeout > 0 {
		timer := time.NewTimer(t.timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		select {
		case <-expired:
			t.log.Warn().Msg("Serial link did not go quiet, sending anyway")
			return nil
		case <-t.done:
			return &LinkError{Op: "settle", Kind: ErrDisconnected, Err: ErrClosed}
		case ev := <-t.events:
			switch {
			case errors.Is(ev.err, errIdle):
				if !ev.at.Before(t.failedAt) {
					return nil
				}
			case ev.err != nil && !errors.Is(ev.err, ErrTooLong):
				return t.linkError("read", ev.err)
			default:
				t.log.Debug().Str("line", ev.line).Msg("Dropping late line")
			}
		}
	}
}

func unexpected(ev portEvent) *DecodeError {
	if ev.err != nil {
		return &DecodeError{Response: ev.line, Err: ev.err}
	}
	return &DecodeError{Response: ev.line, Err: ErrEchoMismatch}
}

// readPort turns the byte stream into events until the port fails or stop is
// closed. A line is stamped when its last byte arrives, an empty read when
// it began.
func readPort(port io.Reader, events chan<- portEvent, stop <-chan struct{}) {
	send := func(ev portEvent) bool {
		select {
		case events <- ev:
			return true
		case <-stop:
			return false
		}
	}

	buf := make([]byte, maxLineLength)
	line := make([]byte, 0, maxLineLength+1)
	for {
		select {
		case <-stop:
			return
		default:
		}

		began := time.Now()
		n, err := port.Read(buf)
		at := time.Now()
		for _, c := range buf[:n] {
			line = append(line, c)
			switch {
			case c == '\n':
				if !send(portEvent{line: cleanLine(line), at: at}) {
					return
				}
				line = line[:0]
			case len(line) > maxLineLength:
				if !send(portEvent{line: string(line), err: ErrTooLong, at: at}) {
					return
				}
				line = line[:0]
			}
		}

		switch {
		case err != nil && !isTimeout(err):
			send(portEvent{err: err, at: at})
			return
		case n == 0:
			if !send(portEvent{err: errIdle, at: began}) {
				return
			}
			select {
			case <-time.After(idlePause):
			case <-stop:
				return
			}
		}
	}
}

func cleanLine(line []byte) string {
	return strings.TrimPrefix(strings.TrimSpace(string(line)), "#")
}

// linkError classifies an I/O failure. Running out of bytes is a timeout,
// anything else means the port is gone and stays gone until Reopen.
func (t *Transport) linkError(op string, err error) error {
	if isTimeout(err) {
		return &LinkError{Op: op, Kind: ErrTimeout, Err: err}
	}
	t.broken = err
	t.log.Error().Err(err).Str("op", op).Msg("serial link lost")
	return &LinkError{Op: op, Kind: ErrDisconnected, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrNoProgress) || errors.Is(err, errDeadline) ||
		errors.Is(err, errIdle) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

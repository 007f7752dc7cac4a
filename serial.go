package monoprice

import (
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaud        = 9600
	DefaultReadTimeout = 500 * time.Millisecond
)

// SerialOpener returns an OpenFunc for the named serial device. readTimeout
// bounds every read so a silent amplifier surfaces as a timeout instead of
// blocking forever; zero or less means DefaultReadTimeout.
func SerialOpener(name string, baud int, readTimeout time.Duration) OpenFunc {
	cfg := serialConfig(name, baud, readTimeout)
	return func() (io.ReadWriter, error) {
		return serial.OpenPort(cfg)
	}
}

func serialConfig(name string, baud int, readTimeout time.Duration) *serial.Config {
	if baud <= 0 {
		baud = DefaultBaud
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
}

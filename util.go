package monoprice

import (
	"fmt"
	"strconv"
)

// Every value on the wire is a pair of ASCII digits.
const pairWidth = 2

type unmarshaler func(string) error

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

// parsePair decodes exactly two ASCII digits. Signs, spaces and short
// fields are rejected.
func parsePair(str string) (int, error) {
	if len(str) != pairWidth || !isDigit(str[0]) || !isDigit(str[1]) {
		return 0, fmt.Errorf("%w: %q is not a digit pair", strconv.ErrSyntax, str)
	}
	return int(str[0]-'0')*10 + int(str[1]-'0'), nil
}

func pairUnmarshaler[T ~int](receiver *T) unmarshaler {
	return func(str string) error {
		v, err := parsePair(str)
		if err != nil {
			return err
		}
		*receiver = T(v)
		return nil
	}
}

// flagUnmarshaler accepts "00" and "01" only.
func flagUnmarshaler(receiver *bool) unmarshaler {
	return func(str string) error {
		v, err := parsePair(str)
		if err != nil {
			return err
		}
		if v > 1 {
			return fmt.Errorf("%w: flag %q", strconv.ErrSyntax, str)
		}
		*receiver = v == 1
		return nil
	}
}

type marshaler func() string

func pairMarshaler[T ~int](value T) marshaler {
	return func() string {
		return fmt.Sprintf("%02d", int(value))
	}
}

func flagMarshaler(value bool) marshaler {
	return func() string {
		if value {
			return "01"
		}
		return "00"
	}
}

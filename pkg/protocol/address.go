package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Address errors.
var (
	// ErrInvalidAddress indicates a malformed load address.
	ErrInvalidAddress = errors.New("invalid load address")
)

// addressPattern matches the literal MM-O address form, e.g. "01-1".
var addressPattern = regexp.MustCompile(`^([0-9]{2})-([0-9])$`)

// Address identifies a single load on the bus in the literal "MM-O" form.
// It is an opaque key: the engine never does arithmetic on it, only string
// matching and map lookups. Addresses must be unique across all loads
// regardless of kind.
type Address string

// ParseAddress validates s as a load address and returns it.
// The module number must be 01-99 and the output number 1-9.
func ParseAddress(s string) (Address, error) {
	m := addressPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	module, _ := strconv.Atoi(m[1])
	output, _ := strconv.Atoi(m[2])
	if module < 1 || module > 99 {
		return "", fmt.Errorf("%w: module %d out of range", ErrInvalidAddress, module)
	}
	if output < 1 {
		return "", fmt.Errorf("%w: output %d out of range", ErrInvalidAddress, output)
	}

	return Address(m[0]), nil
}

// Valid reports whether the address is well-formed.
func (a Address) Valid() bool {
	_, err := ParseAddress(string(a))
	return err == nil
}

// String returns the literal wire form.
func (a Address) String() string {
	return string(a)
}

// Kind distinguishes the two load types sharing the same wire grammar.
type Kind uint8

const (
	// KindDimmer is a dimmable load (raw values 000-250).
	KindDimmer Kind = 0

	// KindSwitch is a relay load (raw values 000/001 only).
	KindSwitch Kind = 1
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDimmer:
		return "DIMMER"
	case KindSwitch:
		return "SWITCH"
	default:
		return "UNKNOWN"
	}
}

// ParseKind parses a kind name as it appears in configuration files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dimmer":
		return KindDimmer, nil
	case "switch", "relay":
		return KindSwitch, nil
	default:
		return 0, fmt.Errorf("unknown load kind %q", s)
	}
}

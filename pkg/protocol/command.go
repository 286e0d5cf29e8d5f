package protocol

import (
	"fmt"
	"regexp"
)

// Wire constants.
const (
	// CodeQuery is the command code for load status queries.
	CodeQuery = "18"

	// CodeSet is the command code for load level changes.
	CodeSet = "10"

	// Terminator ends every command and reply on the wire.
	Terminator = '\r'
)

// queryPattern matches a fully formed query command and captures the
// target address. The reply will not repeat the address, so whoever puts
// a query on the wire must capture it here.
var queryPattern = regexp.MustCompile(`^ ` + CodeQuery + ` ([0-9]{2}-[0-9])$`)

// QueryCommand builds the command text for a status query of addr,
// excluding the terminator.
func QueryCommand(addr Address) string {
	return fmt.Sprintf(" %s %s", CodeQuery, addr)
}

// SetCommand builds the command text that drives addr to the given raw
// value, excluding the terminator.
func SetCommand(addr Address, raw int) string {
	return fmt.Sprintf(" %s %s %03d", CodeSet, addr, raw)
}

// QueryTarget reports whether text is a query command and, if so, returns
// the address it targets.
func QueryTarget(text string) (Address, bool) {
	m := queryPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return Address(m[1]), true
}

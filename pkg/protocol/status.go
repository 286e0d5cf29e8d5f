package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// statusPattern matches a status reply: the echoed query code followed by
// a three-digit raw value. No address is present anywhere in the line.
var statusPattern = regexp.MustCompile(`^` + CodeQuery + ` ([0-9]{3})$`)

// ParseStatus parses a reply line into its raw value. It reports ok=false
// for lines that do not match the status grammar; such lines carry no
// information that could be attributed to any load.
func ParseStatus(line string) (raw int, ok bool) {
	m := statusPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	raw, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return raw, true
}

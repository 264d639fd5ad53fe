package logparse

import "strings"

// levelSeparator splits a proxy line into "<header>: <LEVEL>: <message>".
const levelSeparator = ": "

// ExtractLevel returns the loglevel token of a proxy log line.
// The level is the first word of the second ": "-delimited segment and is only
// reported when the line has at least three segments.
func ExtractLevel(line string) (string, bool) {
	parts := strings.SplitN(line, levelSeparator, 3)
	if len(parts) < 3 {
		return "", false
	}
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// IsDebug reports whether the line was logged at DEBUG level.
// The comparison is exact; "debug" or "DBG" are not treated as DEBUG.
func IsDebug(line string) bool {
	level, ok := ExtractLevel(line)
	return ok && level == "DEBUG"
}

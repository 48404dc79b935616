// Package cpuset parses kernel cpuset range lists such as "0-3,7".
package cpuset

import (
	"strconv"
	"strings"
)

// Contains reports whether the given CPU number is part of the range list.
// Malformed tokens are ignored.
func Contains(cpu int, list string) bool {
	if cpu < 0 {
		return false
	}
	found := false
	walk(list, func(lo, hi int) bool {
		if cpu >= lo && cpu <= hi {
			found = true
			return false
		}
		return true
	})
	return found
}

// Count returns the number of CPUs named by the range list.
func Count(list string) uint32 {
	var n uint32
	walk(list, func(lo, hi int) bool {
		n += uint32(hi - lo + 1) // nolint:gosec
		return true
	})
	return n
}

// walk calls fn for each well formed token of the list with the inclusive
// range it names. fn returning false stops the walk.
func walk(list string, fn func(lo, hi int) bool) {
	for _, tok := range strings.Split(strings.TrimSpace(list), ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		lo, hi, ok := parseToken(tok)
		if !ok {
			continue
		}
		if !fn(lo, hi) {
			return
		}
	}
}

func parseToken(tok string) (int, int, bool) {
	if lo, hi, found := strings.Cut(tok, "-"); found {
		start, err := strconv.Atoi(lo)
		if err != nil {
			return 0, 0, false
		}
		end, err := strconv.Atoi(hi)
		if err != nil || end < start || start < 0 {
			return 0, 0, false
		}
		return start, end, true
	}
	cpu, err := strconv.Atoi(tok)
	if err != nil || cpu < 0 {
		return 0, 0, false
	}
	return cpu, cpu, true
}

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// orDash renders empty values as "-" in tables.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to max runes, adding "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// parseID parses a positional record id argument.
func parseID(kind, arg string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return uint(n), nil
}

// joinIDs renders ids as a comma separated list.
func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

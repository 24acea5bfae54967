package server

import (
	"strconv"
	"strings"
)

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// firstQuery returns the first non-empty value among the given query keys.
func firstQuery(get func(string) string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(get(key)); v != "" {
			return v
		}
	}
	return ""
}

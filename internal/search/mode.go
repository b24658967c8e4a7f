package search

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery marks a request rejected before execution: a malformed
// pattern, filter, sort, or mode.
var ErrInvalidQuery = errors.New("invalid query")

// Mode selects the matching strategy.
type Mode int

const (
	ModeExact Mode = iota
	ModeFuzzy
	ModeRegex
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "exact"
	case ModeFuzzy:
		return "fuzzy"
	case ModeRegex:
		return "regex"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText renders the wire name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode maps a wire name to a Mode. An empty name selects ModeExact.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "exact", "fts":
		return ModeExact, nil
	case "fuzzy":
		return ModeFuzzy, nil
	case "regex", "regexp":
		return ModeRegex, nil
	default:
		return ModeExact, fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, raw)
	}
}

func (m Mode) strategy() (strategy, error) {
	switch m {
	case ModeExact:
		return exactStrategy{}, nil
	case ModeFuzzy:
		return fuzzyStrategy{}, nil
	case ModeRegex:
		return regexStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidQuery, int(m))
	}
}

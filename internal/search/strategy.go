package search

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
)

// MaxPatternBytes bounds regex patterns accepted by ModeRegex.
const MaxPatternBytes = 256

// match is the mode-specific part of a query.
type match struct {
	join    string
	where   sq.Sqlizer
	order   []string
	ranking string
}

// strategy turns the raw query text into a match. A nil match means the
// query contributes no condition and the request browses by filters alone.
type strategy interface {
	match(query string) (*match, error)
}

type exactStrategy struct{}

func (exactStrategy) match(query string) (*match, error) {
	fts, err := BuildFTSQuery(query)
	if err != nil {
		return nil, err
	}
	if fts == "" {
		return nil, nil
	}
	return &match{
		join:    "items_fts ON items_fts.rowid = items.node_id",
		where:   sq.Expr("items_fts MATCH ?", fts),
		order:   []string{"bm25(items_fts)"},
		ranking: "relevance",
	}, nil
}

type fuzzyStrategy struct{}

func (fuzzyStrategy) match(query string) (*match, error) {
	var any sq.Or
	for _, word := range strings.Fields(query) {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		pattern := "%" + escapeLike(word) + "%"
		any = append(any, sq.Expr(`(items.title LIKE ? ESCAPE '\' OR items.text_content LIKE ? ESCAPE '\')`, pattern, pattern))
	}
	if len(any) == 0 {
		return nil, nil
	}
	return &match{
		where:   any,
		order:   []string{"items.date_sort DESC"},
		ranking: "date_desc",
	}, nil
}

type regexStrategy struct{}

func (regexStrategy) match(query string) (*match, error) {
	pattern, err := ValidatePattern(query)
	if err != nil {
		return nil, err
	}
	return &match{
		where:   sq.Expr("(items.title REGEXP ? OR items.text_content REGEXP ?)", pattern, pattern),
		ranking: "node_id",
	}, nil
}

// ValidatePattern checks a user regex and returns the case-insensitive form
// evaluated by the database. RE2 matching is linear in the input, so a
// pattern that compiles cannot hang the scan.
func ValidatePattern(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: regex pattern is empty", ErrInvalidQuery)
	}
	if len(raw) > MaxPatternBytes {
		return "", fmt.Errorf("%w: regex pattern exceeds %d bytes", ErrInvalidQuery, MaxPatternBytes)
	}
	pattern := "(?i)" + raw
	if _, err := regexp.Compile(pattern); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return pattern, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

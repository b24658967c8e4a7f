package search

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Filters narrow a search. Zero values are ignored; set fields are ANDed.
type Filters struct {
	Series        string   `json:"series,omitempty"`
	ItemType      string   `json:"item_type,omitempty"`
	DateFrom      string   `json:"date_from,omitempty"`
	DateTo        string   `json:"date_to,omitempty"`
	Box           int      `json:"box,omitempty"`
	Folder        int      `json:"folder,omitempty"`
	Language      string   `json:"language,omitempty"`
	AnalysisModel string   `json:"analysis_model,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Starred       bool     `json:"starred,omitempty"`
}

var datePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

func (f Filters) validate() error {
	for _, d := range []string{f.DateFrom, f.DateTo} {
		if d != "" && !datePattern.MatchString(d) {
			return fmt.Errorf("%w: date %q must be YYYY, YYYY-MM, or YYYY-MM-DD", ErrInvalidQuery, d)
		}
	}
	if f.Box < 0 || f.Folder < 0 {
		return fmt.Errorf("%w: box and folder must be positive", ErrInvalidQuery)
	}
	return nil
}

func (f Filters) conditions() sq.And {
	var and sq.And
	if v := strings.TrimSpace(f.Series); v != "" {
		and = append(and, sq.Eq{"items.series": v})
	}
	if v := strings.TrimSpace(f.ItemType); v != "" {
		and = append(and, sq.Eq{"items.item_type": v})
	}
	if f.DateFrom != "" {
		and = append(and, sq.GtOrEq{"items.date_sort": f.DateFrom})
	}
	if f.DateTo != "" {
		and = append(and, sq.LtOrEq{"items.date_sort": upperDateBound(f.DateTo)})
	}
	if f.Box > 0 {
		and = append(and, sq.Eq{"items.box_number": f.Box})
	}
	if f.Folder > 0 {
		and = append(and, sq.Eq{"items.folder_number": f.Folder})
	}
	if v := strings.TrimSpace(f.Language); v != "" {
		and = append(and, sq.Eq{"items.language": v})
	}
	if v := strings.TrimSpace(f.AnalysisModel); v != "" {
		and = append(and, sq.Eq{"items.analysis_model": v})
	}
	for _, tag := range f.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		quoted, _ := json.Marshal(tag)
		and = append(and, sq.Expr(`items.tags LIKE ? ESCAPE '\'`, "%"+escapeLike(string(quoted))+"%"))
	}
	if f.Starred {
		and = append(and, sq.Eq{"items.starred": 1})
	}
	return and
}

// upperDateBound widens a partial date so "1960" includes 1960-12-31.
func upperDateBound(d string) string {
	switch len(d) {
	case 4:
		return d + "-12-31"
	case 7:
		return d + "-31"
	default:
		return d
	}
}

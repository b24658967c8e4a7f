package search

import (
	"fmt"
	"strings"
)

// Sort overrides the mode's default ordering.
type Sort struct {
	Field string `json:"field,omitempty"`
	Desc  bool   `json:"desc,omitempty"`
}

var sortColumns = map[string][]string{
	"date_sort":     {"items.date_sort"},
	"title":         {"items.title"},
	"series":        {"items.series"},
	"item_type":     {"items.item_type"},
	"node_id":       {"items.node_id"},
	"box_number":    {"items.box_number"},
	"folder_number": {"items.folder_number"},
	"archive_order": {"items.box_number", "items.folder_number", "items.bundle_number", "items.document_number"},
}

// ParseSort builds a Sort from a field name and an order of "asc" or "desc".
// An empty order sorts ascending.
func ParseSort(field, order string) (Sort, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return Sort{}, nil
	}
	if field == "id" {
		field = "node_id"
	}
	if _, ok := sortColumns[field]; !ok {
		return Sort{}, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, field)
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc":
		return Sort{Field: field}, nil
	case "desc":
		return Sort{Field: field, Desc: true}, nil
	default:
		return Sort{}, fmt.Errorf("%w: sort order %q must be asc or desc", ErrInvalidQuery, order)
	}
}

func (s Sort) clauses() ([]string, error) {
	cols, ok := sortColumns[s.Field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, s.Field)
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = col + " " + dir
	}
	return out, nil
}

func (s Sort) String() string {
	if s.Field == "" {
		return ""
	}
	if s.Desc {
		return s.Field + " desc"
	}
	return s.Field + " asc"
}

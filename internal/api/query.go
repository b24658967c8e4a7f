package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"archivist/internal/search"
)

// ParseSearchRequest builds a search request from query parameters:
// q, mode, series, type, from, to, box, folder, lang, model, tag (repeatable),
// starred, sort, order, page and page_size.
func ParseSearchRequest(values url.Values) (search.Request, error) {
	mode, err := search.ParseMode(values.Get("mode"))
	if err != nil {
		return search.Request{}, err
	}
	sort, err := search.ParseSort(values.Get("sort"), values.Get("order"))
	if err != nil {
		return search.Request{}, err
	}
	req := search.Request{
		Query: strings.TrimSpace(values.Get("q")),
		Mode:  mode,
		Sort:  sort,
		Filters: search.Filters{
			Series:        strings.TrimSpace(values.Get("series")),
			ItemType:      strings.TrimSpace(values.Get("type")),
			DateFrom:      strings.TrimSpace(values.Get("from")),
			DateTo:        strings.TrimSpace(values.Get("to")),
			Language:      strings.TrimSpace(values.Get("lang")),
			AnalysisModel: strings.TrimSpace(values.Get("model")),
		},
	}
	for _, tag := range values["tag"] {
		if tag = strings.TrimSpace(tag); tag != "" {
			req.Filters.Tags = append(req.Filters.Tags, tag)
		}
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"box", &req.Filters.Box},
		{"folder", &req.Filters.Folder},
		{"page", &req.Page},
		{"page_size", &req.PageSize},
	}
	for _, field := range ints {
		raw := strings.TrimSpace(values.Get(field.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return search.Request{}, fmt.Errorf("%w: %s must be a non-negative integer", search.ErrInvalidQuery, field.name)
		}
		*field.dst = n
	}
	if raw := strings.TrimSpace(values.Get("starred")); raw != "" {
		starred, err := strconv.ParseBool(raw)
		if err != nil {
			return search.Request{}, fmt.Errorf("%w: starred must be true or false", search.ErrInvalidQuery)
		}
		req.Filters.Starred = starred
	}
	return req, nil
}

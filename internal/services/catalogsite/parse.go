package catalogsite

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"archivist/internal/catalog"
)

var (
	nodeExpr    = regexp.MustCompile(`/node/(\d+)`)
	isoDateExpr = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	yearExpr    = regexp.MustCompile(`\b(1\d{3}|20\d{2})\b`)
	countExpr   = regexp.MustCompile(`\((\d+)\)`)
	locatorExpr = regexp.MustCompile(`Simon_box(\d+)_fld(\d+)_bdl(\d+)_doc(\d+)`)
)

// itemTypes maps title prefixes to item types; first match wins.
var itemTypes = []struct {
	expr *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`(?i)^Reprint #\d+`), "article"},
	{regexp.MustCompile(`(?i)^Book Chapter`), "chapter"},
	{regexp.MustCompile(`(?i)^Book Review`), "review"},
	{regexp.MustCompile(`(?i)^Book\s+--`), "book"},
	{regexp.MustCompile(`(?i)^Memo\s+--`), "memorandum"},
	{regexp.MustCompile(`(?i)^Letter`), "correspondence"},
}

// Page is one parsed search results page.
type Page struct {
	Items []catalog.Item
	// Total is the collection size reported by the facet sidebar, or 0 when absent.
	Total int
}

// ParsePage extracts result rows from a search page. siteURL is the scheme and
// host used to absolutize relative links; collection names the facet whose
// count is reported as the total.
func ParsePage(r io.Reader, siteURL, collection string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse document: %w", err)
	}
	siteURL = strings.TrimRight(siteURL, "/")

	var page Page
	doc.Find(".view-content > .views-row").Each(func(_ int, row *goquery.Selection) {
		if item, ok := parseRow(row, siteURL); ok {
			page.Items = append(page.Items, item)
		}
	})
	page.Total = totalCount(doc, collection)
	return page, nil
}

func parseRow(row *goquery.Selection, siteURL string) (catalog.Item, bool) {
	var item catalog.Item
	link := row.Find(".search-details h2 a").First()
	if link.Length() == 0 {
		return item, false
	}
	item.Title = strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	href, _, _ = strings.Cut(href, "?")
	item.URL = absolute(siteURL, href)
	match := nodeExpr.FindStringSubmatch(href)
	if match == nil {
		return item, false
	}
	nodeID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || nodeID <= 0 {
		return item, false
	}
	item.NodeID = nodeID

	row.Find(".search-details strong").Each(func(_ int, strong *goquery.Selection) {
		label := strings.TrimSuffix(strings.TrimSpace(strong.Text()), ":")
		value := labelValue(strong)
		if value == "" {
			return
		}
		switch label {
		case "Date":
			item.Date = value
			item.DateSort = sortableDate(row, value)
		case "Series":
			item.Series = value
		}
	})

	for _, candidate := range itemTypes {
		if candidate.expr.MatchString(item.Title) {
			item.ItemType = candidate.kind
			break
		}
	}

	if src, ok := row.Find(".search-image img").First().Attr("src"); ok && src != "" {
		item.ThumbnailURL = absolute(siteURL, src)
		if m := locatorExpr.FindStringSubmatch(src); m != nil {
			item.Locator = catalog.Locator{
				Box:      atoi(m[1]),
				Folder:   atoi(m[2]),
				Bundle:   atoi(m[3]),
				Document: atoi(m[4]),
			}
		}
	}
	return item, true
}

// labelValue returns the text that follows a <strong>Label:</strong> marker up
// to the next element.
func labelValue(strong *goquery.Selection) string {
	node := strong.Get(0).NextSibling
	if node == nil {
		return ""
	}
	return strings.TrimSpace(goquery.NewDocumentFromNode(node).Text())
}

// sortableDate prefers an ISO date anywhere in the row markup (the display
// date is free text) and falls back to the first plausible year.
func sortableDate(row *goquery.Selection, display string) string {
	if markup, err := goquery.OuterHtml(row); err == nil {
		if iso := isoDateExpr.FindString(markup); iso != "" {
			return iso
		}
	}
	if m := yearExpr.FindStringSubmatch(display); m != nil {
		return m[1]
	}
	return ""
}

func totalCount(doc *goquery.Document, collection string) int {
	total := 0
	doc.Find("[data-drupal-facet-item-value]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if value, _ := s.Attr("data-drupal-facet-item-value"); value != collection {
			return true
		}
		if m := countExpr.FindStringSubmatch(s.Find(".facet-item__count").Text()); m != nil {
			total = atoi(m[1])
		}
		return false
	})
	return total
}

func absolute(siteURL, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return siteURL + ref
	}
	return ref
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

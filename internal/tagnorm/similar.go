package tagnorm

import (
	"regexp"
	"sort"
	"strings"

	"archivist/internal/textutil"
)

// DefaultThreshold is the similarity ratio above which two tags are grouped.
const DefaultThreshold = 0.8

var (
	honorificExpr = regexp.MustCompile(`^(dr|prof|mr|mrs|ms)\.?\s+`)
	initialExpr   = regexp.MustCompile(`\s+\pL\.?\s+`)
	punctExpr     = regexp.MustCompile(`[^\pL\pN\s]`)
	spaceExpr     = regexp.MustCompile(`\s+`)
)

// Key reduces a tag to its comparison form: case-folded, honorifics and
// middle initials removed, punctuation stripped, whitespace collapsed.
func Key(tag string) string {
	key := fold(strings.TrimSpace(tag))
	key = honorificExpr.ReplaceAllString(key, "")
	key = initialExpr.ReplaceAllString(key, " ")
	key = punctExpr.ReplaceAllString(key, "")
	return strings.TrimSpace(spaceExpr.ReplaceAllString(key, " "))
}

// TagCount is one tag and the number of items carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// Group is a set of tags believed to name the same thing, most used first.
type Group struct {
	Key   string
	Exact bool
	Tags  []TagCount
}

// Total sums the counts of the group.
func (g Group) Total() int {
	total := 0
	for _, t := range g.Tags {
		total += t.Count
	}
	return total
}

// Canonical returns the most used spelling.
func (g Group) Canonical() string {
	if len(g.Tags) == 0 {
		return ""
	}
	return g.Tags[0].Tag
}

// Count tallies tags across items.
func Count(sets map[int64][]string) map[string]int {
	counts := make(map[string]int)
	for _, tags := range sets {
		for _, tag := range tags {
			counts[tag]++
		}
	}
	return counts
}

// FindSimilar groups variants. Groups are ordered by total usage.
func FindSimilar(counts map[string]int, threshold float64) []Group {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	byKey := make(map[string][]string)
	var keys []string
	for _, tag := range tags {
		key := Key(tag)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], tag)
	}

	var groups []Group
	var singles []string
	for _, key := range keys {
		members := byKey[key]
		if len(members) > 1 {
			groups = append(groups, newGroup(key, true, members, counts))
			continue
		}
		singles = append(singles, members[0])
	}

	checked := make(map[string]bool, len(singles))
	for i, first := range singles {
		if checked[first] {
			continue
		}
		checked[first] = true
		similar := []string{first}
		lowerFirst := fold(first)
		for _, other := range singles[i+1:] {
			if checked[other] {
				continue
			}
			lowerOther := fold(other)
			if strings.Contains(lowerFirst, lowerOther) || strings.Contains(lowerOther, lowerFirst) ||
				textutil.Ratio(first, other) >= threshold {
				similar = append(similar, other)
				checked[other] = true
			}
		}
		if len(similar) > 1 {
			groups = append(groups, newGroup(Key(first), false, similar, counts))
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total() > groups[j].Total()
	})
	return groups
}

func newGroup(key string, exact bool, members []string, counts map[string]int) Group {
	g := Group{Key: key, Exact: exact}
	for _, tag := range members {
		g.Tags = append(g.Tags, TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(g.Tags, func(i, j int) bool {
		if g.Tags[i].Count != g.Tags[j].Count {
			return g.Tags[i].Count > g.Tags[j].Count
		}
		return g.Tags[i].Tag < g.Tags[j].Tag
	})
	return g
}

// GenerateRules maps every non-canonical member of each group to the most
// used spelling.
func GenerateRules(groups []Group) *Rules {
	merge := make(map[string]string)
	for _, g := range groups {
		canonical := g.Canonical()
		for _, t := range g.Tags[1:] {
			merge[t.Tag] = canonical
		}
	}
	rules := &Rules{Merge: merge}
	_ = rules.compile()
	return rules
}

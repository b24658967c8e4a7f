package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// RelatedItem is a neighbour of an item with the tags it shares.
type RelatedItem struct {
	Item       *Item
	SharedTags []string
}

// Related groups neighbours of an item.
type Related struct {
	SameFolder []*Item
	SharedTags []RelatedItem
}

// Related returns items from the same folder (archive order) and items
// sharing tags (ranked by overlap, ties by node_id), each capped at limit.
// An item never appears in both groups.
func (s *Store) Related(ctx context.Context, nodeID int64, limit int) (Related, error) {
	var related Related
	if limit <= 0 {
		limit = 10
	}
	item, err := s.Get(ctx, nodeID)
	if err != nil {
		return related, err
	}

	seen := map[int64]struct{}{nodeID: {}}
	if item.Locator.Box > 0 && item.Locator.Folder > 0 {
		query, args, err := sq.Select(itemColumns).From("items").
			Where(sq.Eq{"box_number": item.Locator.Box, "folder_number": item.Locator.Folder}).
			Where(sq.NotEq{"node_id": nodeID}).
			OrderBy("bundle_number", "document_number", "node_id").
			Limit(uint64(limit)).
			ToSql()
		if err != nil {
			return related, err
		}
		related.SameFolder, err = s.queryItems(ctx, query, args...)
		if err != nil {
			return related, fmt.Errorf("same folder: %w", err)
		}
		for _, other := range related.SameFolder {
			seen[other.NodeID] = struct{}{}
		}
	}

	if len(item.Tags) == 0 {
		return related, nil
	}
	wanted := make(map[string]struct{}, len(item.Tags))
	for _, tag := range item.Tags {
		wanted[strings.ToLower(tag)] = struct{}{}
	}
	sets, err := s.TagSets(ctx)
	if err != nil {
		return related, err
	}

	type candidate struct {
		id     int64
		shared []string
	}
	var candidates []candidate
	for id, tags := range sets {
		if _, skip := seen[id]; skip {
			continue
		}
		var shared []string
		for _, tag := range tags {
			if _, ok := wanted[strings.ToLower(tag)]; ok {
				shared = append(shared, tag)
			}
		}
		if len(shared) > 0 {
			candidates = append(candidates, candidate{id: id, shared: shared})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].shared) != len(candidates[j].shared) {
			return len(candidates[i].shared) > len(candidates[j].shared)
		}
		return candidates[i].id < candidates[j].id
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	items, err := s.getMany(ctx, ids)
	if err != nil {
		return related, err
	}
	byID := make(map[int64]*Item, len(items))
	for _, it := range items {
		byID[it.NodeID] = it
	}
	for _, c := range candidates {
		if it, ok := byID[c.id]; ok {
			related.SharedTags = append(related.SharedTags, RelatedItem{Item: it, SharedTags: c.shared})
		}
	}
	return related, nil
}

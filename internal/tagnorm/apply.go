package tagnorm

import (
	"context"
	"slices"
	"sort"
)

// Store is the catalog surface tag application needs.
type Store interface {
	TagSets(ctx context.Context) (map[int64][]string, error)
	ReplaceTags(ctx context.Context, nodeID int64, tags []string) error
}

// ApplyToStore rewrites the tags of every item whose set changes under rules
// and returns the number of items updated.
func ApplyToStore(ctx context.Context, store Store, rules *Rules) (int, error) {
	sets, err := store.TagSets(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(sets))
	for id := range sets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	updated := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		current := sets[id]
		next := rules.Apply(current)
		if slices.Equal(current, next) {
			continue
		}
		if err := store.ReplaceTags(ctx, id, next); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

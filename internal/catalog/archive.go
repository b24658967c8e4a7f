package catalog

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"archivist/internal/services"
)

// BoxContents is one box of the physical archive and the folders it holds.
type BoxContents struct {
	Box           int
	DocumentCount int
	Folders       []ArchiveUnit
}

// ArchiveStructure groups the catalogued documents by box and folder, in
// archive order.
func (s *Store) ArchiveStructure(ctx context.Context) ([]BoxContents, error) {
	folders, err := s.folderCounts(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []BoxContents
	for _, unit := range folders {
		if len(out) == 0 || out[len(out)-1].Box != unit.Box {
			out = append(out, BoxContents{Box: unit.Box})
		}
		box := &out[len(out)-1]
		box.Folders = append(box.Folders, unit)
		box.DocumentCount += unit.DocumentCount
	}
	return out, nil
}

// FoldersForBox lists the folders of one box with their document counts. An
// unknown box has no folders.
func (s *Store) FoldersForBox(ctx context.Context, box int) ([]ArchiveUnit, error) {
	if box <= 0 {
		return nil, fmt.Errorf("%w: box number must be positive, got %d", services.ErrValidation, box)
	}
	return s.folderCounts(ctx, box)
}

func (s *Store) folderCounts(ctx context.Context, box int) ([]ArchiveUnit, error) {
	builder := sq.Select("box_number", "folder_number", "COUNT(1)").From("items").
		Where("box_number IS NOT NULL AND folder_number IS NOT NULL").
		GroupBy("box_number", "folder_number").
		OrderBy("box_number", "folder_number")
	if box > 0 {
		builder = builder.Where(sq.Eq{"box_number": box})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build folder count query: %w", err)
	}
	units, err := s.queryUnits(ctx, query, true, args...)
	if err != nil {
		return nil, fmt.Errorf("archive structure: %w", err)
	}
	return units, nil
}

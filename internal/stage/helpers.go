package stage

import (
	"fmt"

	"archivist/internal/catalog"
	"archivist/internal/services"
)

// RequireLocator returns a validation error when the item has no complete
// box/folder/bundle/document tuple.
func RequireLocator(name string, item *catalog.Item) error {
	if item == nil {
		return services.Wrap(services.ErrValidation, name, "locate source", "item is nil", nil)
	}
	if !item.Locator.Valid() {
		return services.Wrap(services.ErrValidation, name, "locate source",
			fmt.Sprintf("node %d has an incomplete locator", item.NodeID), nil)
	}
	return nil
}

package stage

import (
	"errors"
	"testing"

	"archivist/internal/catalog"
	"archivist/internal/services"
)

func TestRequireLocator_Valid(t *testing.T) {
	item := &catalog.Item{NodeID: 1, Locator: catalog.Locator{Box: 1, Folder: 2, Bundle: 3, Document: 4}}
	if err := RequireLocator("download", item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireLocator_Incomplete(t *testing.T) {
	item := &catalog.Item{NodeID: 7, Locator: catalog.Locator{Box: 1}}
	err := RequireLocator("download", item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequireLocator_Nil(t *testing.T) {
	if err := RequireLocator("mirror", nil); err == nil {
		t.Fatal("expected error for nil item")
	}
}

package catalog_test

import (
	"testing"

	"archivist/internal/catalog"
)

func TestLocatorSourceURL(t *testing.T) {
	loc := catalog.Locator{Box: 69, Folder: 5305, Bundle: 1, Document: 1}
	want := "http://iiif.library.cmu.edu/file/box00069/fld05305/bdl0001/Simon_box00069_fld05305_bdl0001_doc0001.pdf"
	if got := loc.SourceURL("http://iiif.library.cmu.edu/file/"); got != want {
		t.Fatalf("SourceURL = %q, want %q", got, want)
	}
	if got := loc.RelativePath(); got != "box00069/folder05305/Simon_box00069_fld05305_bdl0001_doc0001.pdf" {
		t.Fatalf("RelativePath = %q", got)
	}
	if !loc.Valid() {
		t.Fatal("expected locator to be valid")
	}
	if (catalog.Locator{Box: 1, Folder: 2, Bundle: 0, Document: 4}).Valid() {
		t.Fatal("locator with missing bundle should be invalid")
	}
}

func TestEncodeTagsDropsDuplicates(t *testing.T) {
	if got := catalog.EncodeTags([]string{"AI", "ai", " Chess "}); got != `["AI","Chess"]` {
		t.Fatalf("EncodeTags = %s", got)
	}
	if got := catalog.EncodeTags(nil); got != "" {
		t.Fatalf("EncodeTags(nil) = %q", got)
	}
}

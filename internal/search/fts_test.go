package search_test

import (
	"errors"
	"testing"

	"archivist/internal/search"
)

func TestBuildFTSQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"simon carnegie", `"simon" AND "carnegie"`},
		{"simon OR newell", `"simon" OR "newell"`},
		{"simon not chess", `"simon" NOT "chess"`},
		{`"bounded rationality"`, `"bounded rationality"`},
		{"(simon OR newell) AND AI", `( "simon" OR "newell" ) AND "AI"`},
		{"logic (theorist OR theory)", `"logic" AND ( "theorist" OR "theory" )`},
		{"simon's chess*", `"simons" AND "chess"`},
		{"carnegie-mellon", `"carnegie-mellon"`},
		{"OR simon AND", `"simon"`},
		{"simon AND NOT chess", `"simon" NOT "chess"`},
		{"simon NOT", `"simon"`},
		{"simon AND OR newell", `"simon" OR "newell"`},
		{"(simon", `"simon"`},
		{"simon) newell", `"simon" AND "newell"`},
		{"() simon", `"simon"`},
		{`"unterminated phrase`, `"unterminated phrase"`},
		{"西蒙 决策", `"西蒙" AND "决策"`},
		{"*** ???", ""},
	}
	for _, tc := range cases {
		got, err := search.BuildFTSQuery(tc.in)
		if err != nil {
			t.Errorf("BuildFTSQuery(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("BuildFTSQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildFTSQueryRejectsLeadingNot(t *testing.T) {
	for _, in := range []string{"NOT chess", "OR NOT chess", "simon AND (NOT chess)", "NOT (chess OR go)"} {
		if _, err := search.BuildFTSQuery(in); !errors.Is(err, search.ErrInvalidQuery) {
			t.Errorf("BuildFTSQuery(%q) error = %v, want ErrInvalidQuery", in, err)
		}
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]search.Mode{
		"":       search.ModeExact,
		"exact":  search.ModeExact,
		"Fuzzy":  search.ModeFuzzy,
		"regex ": search.ModeRegex,
	} {
		got, err := search.ParseMode(raw)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := search.ParseMode("semantic"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestValidatePattern(t *testing.T) {
	if p, err := search.ValidatePattern("Sim[oa]n"); err != nil || p != "(?i)Sim[oa]n" {
		t.Fatalf("ValidatePattern = %q, %v", p, err)
	}
	for _, bad := range []string{"", "  ", "Sim[oa", "(a+)+\\", string(make([]byte, search.MaxPatternBytes+1))} {
		if _, err := search.ValidatePattern(bad); err == nil {
			t.Errorf("expected ValidatePattern(%q) to fail", bad)
		}
	}
}

func TestParseSort(t *testing.T) {
	s, err := search.ParseSort("Title", "DESC")
	if err != nil || s.Field != "title" || !s.Desc {
		t.Fatalf("ParseSort = %+v, %v", s, err)
	}
	if s, err := search.ParseSort("id", ""); err != nil || s.Field != "node_id" {
		t.Fatalf("ParseSort(id) = %+v, %v", s, err)
	}
	if _, err := search.ParseSort("text_content", "asc"); err == nil {
		t.Fatal("expected error for unsortable field")
	}
	if _, err := search.ParseSort("title", "sideways"); err == nil {
		t.Fatal("expected error for bad order")
	}
}

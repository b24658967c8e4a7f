package language

import (
	"strings"

	"golang.org/x/text/cases"
	textlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Unknown is stored when a provider cannot name the language.
const Unknown = "Unknown"

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2/T
	alt3    string   // ISO 639-2/B where it differs
	display string   // stored name
	words   []string // lower-case spellings providers use
}

// Languages common in the collection. Anything else falls through to the
// BCP 47 parser.
var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"fr", "fra", "fre", "French", []string{"french", "français", "francais"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "español", "espanol"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese", "mandarin"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"hu", "hun", "", "Hungarian", []string{"hungarian"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
	{"la", "lat", "", "Latin", []string{"latin"}},
}

var byKey map[string]*entry

func init() {
	byKey = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		byKey[e.code2] = e
		byKey[e.code3] = e
		if e.alt3 != "" {
			byKey[e.alt3] = e
		}
		byKey[strings.ToLower(e.display)] = e
		for _, w := range e.words {
			byKey[w] = e
		}
	}
}

func lookup(raw string) *entry {
	return byKey[strings.ToLower(strings.TrimSpace(raw))]
}

// Normalize returns the display name for a provider language label. Empty
// and "unknown" labels become Unknown; unrecognized words are title-cased.
func Normalize(raw string) string {
	raw = strings.Trim(strings.TrimSpace(raw), `."'`)
	if raw == "" || strings.EqualFold(raw, "unknown") || strings.EqualFold(raw, "und") {
		return Unknown
	}
	if e := lookup(raw); e != nil {
		return e.display
	}
	if tag, err := textlang.Parse(raw); err == nil {
		base, _ := tag.Base()
		if e := lookup(base.String()); e != nil {
			return e.display
		}
		if name := display.English.Languages().Name(base); name != "" {
			return name
		}
	}
	return cases.Title(textlang.English).String(strings.ToLower(raw))
}

// ToISO2 converts a recognized label to its ISO 639-1 code, or "".
func ToISO2(raw string) string {
	if e := lookup(raw); e != nil {
		return e.code2
	}
	if tag, err := textlang.Parse(strings.TrimSpace(raw)); err == nil {
		base, conf := tag.Base()
		if conf != textlang.No && len(base.String()) == 2 {
			return base.String()
		}
	}
	return ""
}

package summaries

import (
	"fmt"
	"sort"
	"strings"

	"archivist/internal/catalog"
	"archivist/internal/textutil"
)

const (
	folderDocumentLimit = 50
	boxDocumentLimit    = 150
	folderPromptLines   = 30
	boxPromptFolders    = 20
	titlesPerFolder     = 5
	summaryExcerpt      = 100
)

const systemPrompt = "You label boxes and folders of the Herbert Simon papers archive. Reply with the label only."

const folderTemplate = `Create a very short topic label for this folder from Herbert Simon's papers archive.

Folder: Box %d, Folder %d
Number of documents: %d

Documents in this folder:
%s

Create a brief topic label (5-15 words max) that captures what this folder is about. Format examples:
- "1980 China trip correspondence"
- "NSF grant proposals, cognitive science"
- "Allen Newell collaboration, 1975-1982"
- "Carnegie Mellon administrative files"

Focus on the topic, key people or institutions, and dates if apparent.
Respond with ONLY the short topic label, nothing else.`

const boxTemplate = `Create a very short topic label for this box from Herbert Simon's papers archive.

Box %d
Number of folders: %d
Number of documents: %d

Folder contents:
%s

Create a brief topic label (5-15 words max) that captures the overall theme of this box. Format examples:
- "Professional correspondence, 1970s"
- "Cognitive science research materials"
- "Carnegie Mellon administration, 1965-1975"
- "Conference papers and lectures"

Focus on the main themes, key institutions or people, and time periods if apparent.
Respond with ONLY the short topic label, nothing else.`

func folderPrompt(box, folder int, docs []*catalog.Item) string {
	lines := make([]string, 0, min(len(docs), folderPromptLines))
	for _, doc := range docs {
		if len(lines) == folderPromptLines {
			break
		}
		line := "- " + doc.Title
		if doc.Date != "" {
			line += " (" + doc.Date + ")"
		}
		if doc.Summary != "" {
			line += ": " + textutil.Truncate(doc.Summary, summaryExcerpt) + "..."
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf(folderTemplate, box, folder, len(docs), strings.Join(lines, "\n"))
}

func boxPrompt(box int, docs []*catalog.Item) string {
	byFolder := make(map[int][]*catalog.Item)
	for _, doc := range docs {
		byFolder[doc.Locator.Folder] = append(byFolder[doc.Locator.Folder], doc)
	}
	folders := make([]int, 0, len(byFolder))
	for folder := range byFolder {
		folders = append(folders, folder)
	}
	sort.Ints(folders)

	lines := make([]string, 0, min(len(folders), boxPromptFolders))
	for _, folder := range folders {
		if len(lines) == boxPromptFolders {
			break
		}
		members := byFolder[folder]
		titles := make([]string, 0, titlesPerFolder)
		for _, doc := range members[:min(len(members), titlesPerFolder)] {
			titles = append(titles, doc.Title)
		}
		lines = append(lines, fmt.Sprintf("Folder %d (%d docs): %s", folder, len(members), strings.Join(titles, ", ")))
	}
	return fmt.Sprintf(boxTemplate, box, len(folders), len(docs), strings.Join(lines, "\n"))
}

// cleanLabel strips quotes and list markers some models wrap labels in.
func cleanLabel(reply string) string {
	label := strings.TrimSpace(reply)
	if i := strings.IndexByte(label, '\n'); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	label = strings.TrimLeft(label, "-* ")
	return strings.Trim(label, "\"'` ")
}

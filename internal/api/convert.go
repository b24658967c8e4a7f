package api

import (
	"slices"
	"time"
	"unicode/utf8"

	"archivist/internal/catalog"
	"archivist/internal/stage"
)

// URLs resolves the download addresses of an item. Mirror may be nil.
type URLs struct {
	PDFBaseURL string
	Mirror     func(key string) string
}

// FromItem converts a catalog record to its API representation. The full
// text is never copied.
func FromItem(item *catalog.Item, urls URLs) Item {
	if item == nil {
		return Item{}
	}
	dto := Item{
		NodeID:         item.NodeID,
		Title:          item.Title,
		Date:           item.Date,
		DateSort:       item.DateSort,
		Series:         item.Series,
		ItemType:       item.ItemType,
		URL:            item.URL,
		ThumbnailURL:   item.ThumbnailURL,
		Summary:        item.Summary,
		Tags:           item.Tags,
		Language:       item.Language,
		AnalysisModel:  item.AnalysisModel,
		DownloadStatus: string(item.DownloadStatus),
		ExtractStatus:  string(item.ExtractStatus),
		AnalysisStatus: string(item.AnalysisStatus),
		MirrorStatus:   string(item.MirrorStatus),
		Starred:        item.Starred,
	}
	if dto.Tags == nil {
		dto.Tags = []string{}
	}
	if loc := item.Locator; loc.Valid() {
		dto.DocID = loc.DocID()
		dto.Box, dto.Folder, dto.Bundle, dto.Document = loc.Box, loc.Folder, loc.Bundle, loc.Document
		if urls.PDFBaseURL != "" {
			dto.PDFURL = loc.SourceURL(urls.PDFBaseURL)
		}
	}
	if item.MirrorKey != "" && urls.Mirror != nil {
		dto.MirrorURL = urls.Mirror(item.MirrorKey)
	}
	if item.StarredAt != nil {
		dto.StarredAt = formatTime(*item.StarredAt)
	}
	dto.CreatedAt = formatTime(item.CreatedAt)
	dto.UpdatedAt = formatTime(item.UpdatedAt)
	return dto
}

// FromItems converts a slice of catalog records.
func FromItems(items []*catalog.Item, urls URLs) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item, urls))
	}
	return out
}

// FromRelated converts neighbour groups.
func FromRelated(nodeID int64, related catalog.Related, urls URLs) RelatedResponse {
	resp := RelatedResponse{
		NodeID:     nodeID,
		SameFolder: FromItems(related.SameFolder, urls),
		SharedTags: make([]RelatedItem, 0, len(related.SharedTags)),
	}
	for _, r := range related.SharedTags {
		resp.SharedTags = append(resp.SharedTags, RelatedItem{Item: FromItem(r.Item, urls), SharedTags: r.SharedTags})
	}
	return resp
}

// FromSummaries splits summaries into box and folder lists.
func FromSummaries(summaries []catalog.ArchiveSummary) SummariesResponse {
	resp := SummariesResponse{Boxes: []Summary{}, Folders: []Summary{}}
	for _, s := range summaries {
		dto := Summary{
			Type:          string(s.Type),
			Box:           s.Box,
			Folder:        s.Folder,
			Summary:       s.Summary,
			Model:         s.Model,
			DocumentCount: s.DocumentCount,
			GeneratedAt:   formatTime(s.GeneratedAt),
		}
		if s.Type == catalog.SummaryBox {
			resp.Boxes = append(resp.Boxes, dto)
		} else {
			resp.Folders = append(resp.Folders, dto)
		}
	}
	return resp
}

// FromArchive converts the archive layout, attaching box and folder summaries
// where they exist.
func FromArchive(boxes []catalog.BoxContents, summaries []catalog.ArchiveSummary) ArchiveResponse {
	labels := summaryLabels(summaries)
	resp := ArchiveResponse{Boxes: make([]ArchiveBox, 0, len(boxes))}
	for _, box := range boxes {
		resp.Boxes = append(resp.Boxes, ArchiveBox{
			Box:           box.Box,
			DocumentCount: box.DocumentCount,
			Summary:       labels[[2]int{box.Box, 0}],
			Folders:       fromFolders(box.Folders, labels),
		})
	}
	return resp
}

// FromFolders converts the folders of one box.
func FromFolders(box int, folders []catalog.ArchiveUnit, summaries []catalog.ArchiveSummary) FoldersResponse {
	return FoldersResponse{Box: box, Folders: fromFolders(folders, summaryLabels(summaries))}
}

func fromFolders(units []catalog.ArchiveUnit, labels map[[2]int]string) []ArchiveFolder {
	out := make([]ArchiveFolder, 0, len(units))
	for _, u := range units {
		out = append(out, ArchiveFolder{
			Folder:        u.Folder,
			DocumentCount: u.DocumentCount,
			Summary:       labels[[2]int{u.Box, u.Folder}],
		})
	}
	return out
}

// summaryLabels keys summaries by box and folder; box summaries use folder 0.
func summaryLabels(summaries []catalog.ArchiveSummary) map[[2]int]string {
	labels := make(map[[2]int]string, len(summaries))
	for _, s := range summaries {
		labels[[2]int{s.Box, s.Folder}] = s.Summary
	}
	return labels
}

// FromReocr reports the stored outcome of a forced re-extraction.
func FromReocr(item *catalog.Item) ReocrResponse {
	return ReocrResponse{
		NodeID:         item.NodeID,
		TextLength:     utf8.RuneCountInString(item.TextContent),
		Preview:        preview(item.TextContent, reocrPreviewRunes),
		AnalysisStatus: string(item.AnalysisStatus),
	}
}

const reocrPreviewRunes = 200

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// FromStats converts catalog statistics.
func FromStats(stats catalog.Stats) StatsResponse {
	resp := StatsResponse{
		Total:        stats.Total,
		Indexed:      stats.Indexed,
		Starred:      stats.Starred,
		Stages:       make([]StageCounts, 0, len(stats.Stages)),
		TopLanguages: fromCounts(stats.TopLanguages),
		TopTags:      fromCounts(stats.TopTags),
		Models:       fromCounts(stats.Models),
	}
	for _, sc := range stats.Stages {
		resp.Stages = append(resp.Stages, StageCounts{
			Stage:      string(sc.Stage),
			NotStarted: sc.NotStarted,
			InProgress: sc.InProgress,
			Done:       sc.Done,
			Failed:     sc.Failed,
		})
	}
	return resp
}

func fromCounts(counts []catalog.Count) []Count {
	out := make([]Count, 0, len(counts))
	for _, c := range counts {
		out = append(out, Count{Value: c.Value, Count: c.Count})
	}
	return out
}

// StageHealthSlice converts readiness reports in name order.
func StageHealthSlice(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortFunc(out, func(a, b StageHealth) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

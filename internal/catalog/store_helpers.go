package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const itemColumns = `node_id, title, date, date_sort, series, item_type, url, thumbnail_url,
    box_number, folder_number, bundle_number, document_number,
    text_content, summary, tags, language, analysis_model,
    download_status, extract_status, analysis_status, mirror_status,
    local_pdf_path, mirror_key, starred, starred_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item                                        Item
		date, dateSort, series, itemType            sql.NullString
		url, thumbnail                              sql.NullString
		box, folder, bundle, document               sql.NullInt64
		text, summary, tags, language, model        sql.NullString
		downloadSt, extractSt, analysisSt, mirrorSt string
		localPath, mirrorKey                        sql.NullString
		starred                                     int
		starredAt, createdRaw, updatedRaw           sql.NullString
	)
	if err := scanner.Scan(
		&item.NodeID, &item.Title, &date, &dateSort, &series, &itemType, &url, &thumbnail,
		&box, &folder, &bundle, &document,
		&text, &summary, &tags, &language, &model,
		&downloadSt, &extractSt, &analysisSt, &mirrorSt,
		&localPath, &mirrorKey, &starred, &starredAt, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	item.Date = date.String
	item.DateSort = dateSort.String
	item.Series = series.String
	item.ItemType = itemType.String
	item.URL = url.String
	item.ThumbnailURL = thumbnail.String
	item.Locator = Locator{
		Box:      int(box.Int64),
		Folder:   int(folder.Int64),
		Bundle:   int(bundle.Int64),
		Document: int(document.Int64),
	}
	item.TextContent = text.String
	item.Summary = summary.String
	item.Tags = DecodeTags(tags.String)
	item.Language = language.String
	item.AnalysisModel = model.String
	item.DownloadStatus = Status(downloadSt)
	item.ExtractStatus = Status(extractSt)
	item.AnalysisStatus = Status(analysisSt)
	item.MirrorStatus = Status(mirrorSt)
	item.LocalPDFPath = localPath.String
	item.MirrorKey = mirrorKey.String
	item.Starred = starred != 0
	if starredAt.Valid {
		if ts, err := parseTimeString(starredAt.String); err == nil {
			item.StarredAt = &ts
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

// EncodeTags renders tags as the JSON array stored in the tags column.
// Blank and duplicate (case-insensitive) tags are dropped, order is kept.
func EncodeTags(tags []string) string {
	cleaned := NormalizeTagSet(tags)
	if len(cleaned) == 0 {
		return ""
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return ""
	}
	return string(data)
}

// NormalizeTagSet trims tags and removes blanks and case-insensitive duplicates.
func NormalizeTagSet(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// DecodeTags parses the tags column; malformed values decode as no tags.
func DecodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value <= 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

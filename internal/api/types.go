package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a catalog entry in a transport-friendly format.
type Item struct {
	NodeID         int64    `json:"node_id"`
	Title          string   `json:"title"`
	Date           string   `json:"date,omitempty"`
	DateSort       string   `json:"date_sort,omitempty"`
	Series         string   `json:"series,omitempty"`
	ItemType       string   `json:"item_type,omitempty"`
	URL            string   `json:"url,omitempty"`
	ThumbnailURL   string   `json:"thumbnail_url,omitempty"`
	DocID          string   `json:"doc_id,omitempty"`
	Box            int      `json:"box_number,omitempty"`
	Folder         int      `json:"folder_number,omitempty"`
	Bundle         int      `json:"bundle_number,omitempty"`
	Document       int      `json:"document_number,omitempty"`
	PDFURL         string   `json:"pdf_url,omitempty"`
	MirrorURL      string   `json:"mirror_url,omitempty"`
	Summary        string   `json:"summary,omitempty"`
	Tags           []string `json:"tags"`
	Language       string   `json:"language,omitempty"`
	AnalysisModel  string   `json:"analysis_model,omitempty"`
	DownloadStatus string   `json:"download_status"`
	ExtractStatus  string   `json:"extract_status"`
	AnalysisStatus string   `json:"analysis_status"`
	MirrorStatus   string   `json:"mirror_status"`
	Starred        bool     `json:"starred"`
	StarredAt      string   `json:"starred_at,omitempty"`
	CreatedAt      string   `json:"created_at,omitempty"`
	UpdatedAt      string   `json:"updated_at,omitempty"`
}

// ItemResponse wraps a single item.
type ItemResponse struct {
	Item Item `json:"item"`
}

// ItemListResponse wraps a collection of items.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// TextResponse carries the full text of one item.
type TextResponse struct {
	NodeID int64  `json:"node_id"`
	Text   string `json:"text"`
}

// RelatedItem is a neighbour sharing tags with the requested item.
type RelatedItem struct {
	Item       Item     `json:"item"`
	SharedTags []string `json:"shared_tags"`
}

// RelatedResponse groups neighbours of an item.
type RelatedResponse struct {
	NodeID     int64         `json:"node_id"`
	SameFolder []Item        `json:"same_folder"`
	SharedTags []RelatedItem `json:"shared_tags"`
}

// StarResponse confirms a star change.
type StarResponse struct {
	NodeID  int64 `json:"node_id"`
	Starred bool  `json:"starred"`
}

// Summary is a box or folder label.
type Summary struct {
	Type          string `json:"type"`
	Box           int    `json:"box_number"`
	Folder        int    `json:"folder_number,omitempty"`
	Summary       string `json:"summary"`
	Model         string `json:"model,omitempty"`
	DocumentCount int    `json:"document_count"`
	GeneratedAt   string `json:"generated_at,omitempty"`
}

// SummariesResponse splits labels by level.
type SummariesResponse struct {
	Boxes   []Summary `json:"boxes"`
	Folders []Summary `json:"folders"`
}

// ArchiveFolder is one folder of a box.
type ArchiveFolder struct {
	Folder        int    `json:"folder_number"`
	DocumentCount int    `json:"document_count"`
	Summary       string `json:"summary,omitempty"`
}

// ArchiveBox is one box with its folders.
type ArchiveBox struct {
	Box           int             `json:"box_number"`
	DocumentCount int             `json:"document_count"`
	Summary       string          `json:"summary,omitempty"`
	Folders       []ArchiveFolder `json:"folders"`
}

// ArchiveResponse is the box/folder layout of the physical archive.
type ArchiveResponse struct {
	Boxes []ArchiveBox `json:"boxes"`
}

// FoldersResponse lists the folders of one box.
type FoldersResponse struct {
	Box     int             `json:"box_number"`
	Folders []ArchiveFolder `json:"folders"`
}

// ReocrResponse reports a forced re-extraction.
type ReocrResponse struct {
	NodeID         int64  `json:"node_id"`
	TextLength     int    `json:"text_length"`
	Preview        string `json:"preview"`
	AnalysisStatus string `json:"analysis_status"`
}

// StageCounts is the per-status tally of one stage.
type StageCounts struct {
	Stage      string `json:"stage"`
	NotStarted int    `json:"not_started"`
	InProgress int    `json:"in_progress"`
	Done       int    `json:"done"`
	Failed     int    `json:"failed"`
}

// Count is a value with its frequency.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// StatsResponse summarizes the catalog.
type StatsResponse struct {
	Total        int           `json:"total"`
	Indexed      int           `json:"indexed"`
	Starred      int           `json:"starred"`
	Stages       []StageCounts `json:"stages"`
	TopLanguages []Count       `json:"top_languages"`
	TopTags      []Count       `json:"top_tags"`
	Models       []Count       `json:"models"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database"`
	Stages   []StageHealth `json:"stages,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

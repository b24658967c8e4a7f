package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Stage names one step of the enrichment pipeline.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageAnalyze  Stage = "analyze"
	StageMirror   Stage = "mirror"
	// StageStream fuses download and extract into one step without persisting the PDF.
	StageStream Stage = "stream"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageDownload, StageExtract, StageAnalyze, StageMirror, StageStream}

// ParseStage validates a stage name.
func ParseStage(raw string) (Stage, error) {
	stage := Stage(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Stages {
		if stage == known {
			return stage, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, raw)
}

// statusColumn maps a stage to the column that stores its status.
var statusColumn = map[Stage]string{
	StageDownload: "download_status",
	StageExtract:  "extract_status",
	StageAnalyze:  "analysis_status",
	StageMirror:   "mirror_status",
}

var startedColumn = map[Stage]string{
	StageDownload: "download_started_at",
	StageExtract:  "extract_started_at",
	StageAnalyze:  "analysis_started_at",
	StageMirror:   "mirror_started_at",
}

// predecessor lists the stage that must be done before a stage may complete.
var predecessor = map[Stage]Stage{
	StageExtract: StageDownload,
	StageAnalyze: StageExtract,
	StageMirror:  StageDownload,
}

// Predecessor returns the stage that must be done first, if any.
func (s Stage) Predecessor() (Stage, bool) {
	p, ok := predecessor[s]
	return p, ok
}

// Status represents the lifecycle of one stage for one item.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

type transition struct {
	from Status
	to   Status
}

// transitions is the complete set of allowed status changes. done -> in_progress
// is present but only honoured for forced claims.
var transitions = map[transition]struct{}{
	{StatusNotStarted, StatusInProgress}: {},
	{StatusFailed, StatusInProgress}:     {},
	{StatusInProgress, StatusDone}:       {},
	{StatusInProgress, StatusFailed}:     {},
	{StatusDone, StatusInProgress}:       {},
}

// CanTransition reports whether from -> to is allowed. Re-running a done
// stage requires force.
func CanTransition(from, to Status, force bool) bool {
	if _, ok := transitions[transition{from, to}]; !ok {
		return false
	}
	if from == StatusDone && !force {
		return false
	}
	return true
}

// Locator is the physical archive position of a document.
type Locator struct {
	Box      int
	Folder   int
	Bundle   int
	Document int
}

// Valid reports whether every component of the tuple is present.
func (l Locator) Valid() bool {
	return l.Box > 0 && l.Folder > 0 && l.Bundle > 0 && l.Document > 0
}

// DocID renders the archive document identifier, e.g. Simon_box00069_fld05305_bdl0001_doc0001.
func (l Locator) DocID() string {
	return fmt.Sprintf("Simon_box%05d_fld%05d_bdl%04d_doc%04d", l.Box, l.Folder, l.Bundle, l.Document)
}

// SourceURL builds the PDF URL on the catalog file server.
func (l Locator) SourceURL(base string) string {
	return fmt.Sprintf("%s/box%05d/fld%05d/bdl%04d/%s.pdf",
		strings.TrimRight(base, "/"), l.Box, l.Folder, l.Bundle, l.DocID())
}

// RelativePath is the path of the PDF under the PDF directory and the object
// key in the mirror bucket.
func (l Locator) RelativePath() string {
	return fmt.Sprintf("box%05d/folder%05d/%s.pdf", l.Box, l.Folder, l.DocID())
}

// Item is one archival document.
type Item struct {
	NodeID        int64
	Title         string
	Date          string
	DateSort      string
	Series        string
	ItemType      string
	URL           string
	ThumbnailURL  string
	Locator       Locator
	TextContent   string
	Summary       string
	Tags          []string
	Language      string
	AnalysisModel string

	DownloadStatus Status
	ExtractStatus  Status
	AnalysisStatus Status
	MirrorStatus   Status

	LocalPDFPath string
	MirrorKey    string
	Starred      bool
	StarredAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Status returns the status recorded for a stage. The stream stage reports
// the extract status.
func (i *Item) Status(stage Stage) Status {
	switch stage {
	case StageDownload:
		return i.DownloadStatus
	case StageExtract, StageStream:
		return i.ExtractStatus
	case StageAnalyze:
		return i.AnalysisStatus
	case StageMirror:
		return i.MirrorStatus
	default:
		return ""
	}
}

// Result carries the fields a stage produces for an item. Only the fields
// owned by the completing stage are written.
type Result struct {
	LocalPDFPath  string
	TextContent   string
	Summary       string
	Tags          []string
	Language      string
	AnalysisModel string
	MirrorKey     string
}

// ClaimOptions bounds a claim.
type ClaimOptions struct {
	Limit int
	Force bool
	// NodeIDs restricts the claim to specific items when non-empty.
	NodeIDs []int64
	// AfterID restricts the claim to node ids greater than it.
	AfterID int64
}

// StageCounts holds per-status counts for one stage.
type StageCounts struct {
	Stage      Stage
	NotStarted int
	InProgress int
	Done       int
	Failed     int
}

// Total returns the sum of all statuses.
func (c StageCounts) Total() int {
	return c.NotStarted + c.InProgress + c.Done + c.Failed
}

// Count pairs a facet-like value with its frequency.
type Count struct {
	Value string
	Count int
}

// Stats summarizes the catalog for --stats output and the API.
type Stats struct {
	Total        int
	Stages       []StageCounts
	Starred      int
	Indexed      int
	TopLanguages []Count
	TopTags      []Count
	Models       []Count
}

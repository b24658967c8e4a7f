package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"archivist/internal/config"
)

// Requirement defines an external binary archivist relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// OCRRequirements lists the text extraction tools named by the ocr section.
// Rasterizing and tesseract are only needed for scanned documents, so a
// missing pair degrades extraction instead of blocking it.
func OCRRequirements(cfg config.OCR) []Requirement {
	return []Requirement{
		{Name: "pdftotext", Command: cfg.PdftotextBinary, Description: "Extracts the native text layer (poppler-utils)"},
		{Name: "pdftoppm", Command: cfg.PdftoppmBinary, Description: "Rasterizes scanned pages for OCR (poppler-utils)", Optional: true},
		{Name: "tesseract", Command: cfg.TesseractBinary, Description: "Recognizes text in scanned pages", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the names of unavailable required binaries.
func Missing(statuses []Status) []string {
	var missing []string
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

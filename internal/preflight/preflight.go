package preflight

import (
	"context"

	"archivist/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	Detail  string
}

// Options selects which checks run.
type Options struct {
	// Live enables network checks against the catalog site, the LLM
	// providers and the mirror bucket.
	Live bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("PDF directory", cfg.Paths.PDFDir),
		CheckDatabase(ctx, cfg.Paths.DatabasePath),
	}
	results = append(results, CheckTools(cfg)...)

	if !opts.Live {
		return results
	}
	results = append(results,
		CheckHTTP(ctx, "Catalog site", cfg.Source.SearchURL, cfg.Source.UserAgent),
		CheckPrimaryLLM(ctx, cfg.Analysis.Primary),
		CheckFallbackLLM(ctx, cfg.Analysis.Fallback),
		CheckMirror(ctx, cfg),
	)
	return results
}

// Failed reports whether any non-skipped check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Skipped {
			return true
		}
	}
	return false
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"archivist/internal/catalog"
	"archivist/internal/config"
	"archivist/internal/deps"
	"archivist/internal/services/anthropic"
	"archivist/internal/services/llm"
	"archivist/internal/services/objectstore"
)

type healthChecker interface {
	HealthCheck(ctx context.Context) error
	Configured() bool
}

// CheckPrimaryLLM verifies the OpenAI-compatible provider with a single attempt.
func CheckPrimaryLLM(ctx context.Context, p config.Provider) Result {
	client := llm.NewClient(llm.ConfigFromProvider(p), llm.WithRetryMaxAttempts(1))
	return checkLLM(ctx, "Primary LLM", client)
}

// CheckFallbackLLM verifies the Anthropic provider with a single attempt.
func CheckFallbackLLM(ctx context.Context, p config.Provider) Result {
	client := anthropic.NewClient(p, anthropic.WithRetry(1, 0, 0))
	return checkLLM(ctx, "Fallback LLM", client)
}

// checkLLM uses a 30-second timeout.
func checkLLM(ctx context.Context, name string, client healthChecker) Result {
	if !client.Configured() {
		return Result{Name: name, Skipped: true, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err, "LLM API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckHTTP verifies that url answers a GET with a 2xx or 3xx status.
func CheckHTTP(ctx context.Context, name, url, userAgent string) Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err, "site")}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return Result{Name: name, Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckMirror verifies bucket access when the mirror is configured.
func CheckMirror(ctx context.Context, cfg *config.Config) Result {
	const name = "Mirror bucket"
	if !cfg.MirrorConfigured() {
		return Result{Name: name, Skipped: true, Detail: "not configured"}
	}
	client, err := objectstore.New(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err, "bucket")}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("bucket %s reachable", client.Bucket())}
}

// CheckDatabase opens the catalog, which also verifies the schema version.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Catalog database"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Skipped: true, Detail: fmt.Sprintf("%s (created on first run)", path)}
	}
	store, err := catalog.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTools reports the text extraction binaries as results. Optional
// tools that are missing are reported as skipped.
func CheckTools(cfg *config.Config) []Result {
	statuses := CheckSystemDeps(cfg)
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		r := Result{Name: s.Name, Passed: s.Available, Detail: s.Command}
		if !s.Available {
			r.Detail = s.Detail
			r.Skipped = s.Optional
		}
		results = append(results, r)
	}
	return results
}

// CheckSystemDeps evaluates the external binaries for the given config.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.OCRRequirements(cfg.OCR))
}

func summarizeNetError(err error, what string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("check timed out (%s unresponsive)", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("check timed out (%s unreachable)", what)
	}
	return err.Error()
}

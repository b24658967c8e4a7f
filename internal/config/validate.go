package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not required
// here; stages that need them check with RequireAnalysis and RequireMirror so
// read-only commands work without secrets.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		return errors.New("paths.database_path must be set")
	}
	if strings.TrimSpace(c.Paths.PDFDir) == "" {
		return errors.New("paths.pdf_dir must be set")
	}
	return nil
}

func (c *Config) validateSource() error {
	for key, raw := range map[string]string{
		"source.search_url":   c.Source.SearchURL,
		"source.pdf_base_url": c.Source.PDFBaseURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	return nil
}

func (c *Config) validateOCR() error {
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return errors.New("ocr.dpi must be between 72 and 1200")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MinChars >= c.Analysis.MaxChars {
		return errors.New("analysis.min_chars must be smaller than analysis.max_chars")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.MaxPageSize > 1000 {
		return errors.New("search.max_page_size must be <= 1000")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

// RequireAnalysis reports an error when no analysis provider has credentials.
func (c *Config) RequireAnalysis() error {
	if c.Analysis.Primary.APIKey == "" && c.Analysis.Fallback.APIKey == "" {
		return errors.New("analysis requires analysis.primary.api_key or analysis.fallback.api_key (or DEEPSEEK_API_KEY / ANTHROPIC_API_KEY)")
	}
	return nil
}

// RequireMirror reports an error when the mirror bucket cannot be reached.
func (c *Config) RequireMirror() error {
	if !c.MirrorConfigured() {
		return errors.New("mirror requires endpoint or account_id, access keys, and bucket (or R2_* environment variables)")
	}
	return nil
}

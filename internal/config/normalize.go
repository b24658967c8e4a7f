package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeOCR()
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeMirror()
	c.normalizePipeline()
	c.normalizeSearch()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PDFDir) == "" {
		c.Paths.PDFDir = filepath.Join(c.Paths.DataDir, "pdfs")
	}
	if c.Paths.PDFDir, err = expandPath(c.Paths.PDFDir); err != nil {
		return fmt.Errorf("paths.pdf_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() {
	c.Source.SearchURL = strings.TrimSpace(c.Source.SearchURL)
	if c.Source.SearchURL == "" {
		c.Source.SearchURL = defaultSearchURL
	}
	c.Source.PDFBaseURL = strings.TrimRight(strings.TrimSpace(c.Source.PDFBaseURL), "/")
	if c.Source.PDFBaseURL == "" {
		c.Source.PDFBaseURL = defaultPDFBaseURL
	}
	c.Source.Collection = strings.TrimSpace(c.Source.Collection)
	if c.Source.Collection == "" {
		c.Source.Collection = defaultCollection
	}
	c.Source.UserAgent = strings.TrimSpace(c.Source.UserAgent)
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = defaultUserAgent
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
	// The catalog only honours 10 or 25 results per page.
	if c.Source.ItemsPerPage != 10 && c.Source.ItemsPerPage != 25 {
		c.Source.ItemsPerPage = defaultItemsPerPage
	}
}

func (c *Config) normalizeOCR() {
	c.OCR.PdftotextBinary = orDefault(c.OCR.PdftotextBinary, "pdftotext")
	c.OCR.PdftoppmBinary = orDefault(c.OCR.PdftoppmBinary, "pdftoppm")
	c.OCR.TesseractBinary = orDefault(c.OCR.TesseractBinary, "tesseract")
	c.OCR.Languages = orDefault(c.OCR.Languages, defaultOCRLanguages)
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = defaultOCRDPI
	}
	if c.OCR.MinNativeChars < 0 {
		c.OCR.MinNativeChars = defaultMinNativeChars
	}
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = defaultOCRTimeout
	}
}

func (c *Config) normalizeAnalysis() error {
	p := &c.Analysis.Primary
	p.BaseURL = orDefault(p.BaseURL, defaultPrimaryBaseURL)
	p.Model = orDefault(p.Model, defaultPrimaryModel)
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.APIKey == "" {
		p.APIKey = envValue("DEEPSEEK_API_KEY")
	}
	normalizeProvider(p)

	f := &c.Analysis.Fallback
	f.BaseURL = orDefault(f.BaseURL, defaultFallbackBaseURL)
	f.Model = orDefault(f.Model, defaultFallbackModel)
	f.APIKey = strings.TrimSpace(f.APIKey)
	if f.APIKey == "" {
		f.APIKey = envValue("ANTHROPIC_API_KEY")
	}
	normalizeProvider(f)

	if c.Analysis.MaxChars <= 0 {
		c.Analysis.MaxChars = defaultAnalysisMaxChars
	}
	if c.Analysis.MinChars <= 0 {
		c.Analysis.MinChars = defaultAnalysisMinChars
	}
	if strings.TrimSpace(c.Analysis.TagRulesPath) != "" {
		var err error
		if c.Analysis.TagRulesPath, err = expandPath(strings.TrimSpace(c.Analysis.TagRulesPath)); err != nil {
			return fmt.Errorf("analysis.tag_rules_path: %w", err)
		}
	}
	return nil
}

func normalizeProvider(p *Provider) {
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = defaultProviderTimeout
	}
}

func (c *Config) normalizeMirror() {
	m := &c.Mirror
	m.Endpoint = strings.TrimSpace(m.Endpoint)
	if m.AccountID = strings.TrimSpace(m.AccountID); m.AccountID == "" {
		m.AccountID = envValue("R2_ACCOUNT_ID")
	}
	if m.AccessKeyID = strings.TrimSpace(m.AccessKeyID); m.AccessKeyID == "" {
		m.AccessKeyID = envValue("R2_ACCESS_KEY_ID")
	}
	if m.SecretAccessKey = strings.TrimSpace(m.SecretAccessKey); m.SecretAccessKey == "" {
		m.SecretAccessKey = envValue("R2_SECRET_ACCESS_KEY")
	}
	if m.Bucket = strings.TrimSpace(m.Bucket); m.Bucket == "" {
		m.Bucket = envValue("R2_BUCKET_NAME")
	}
	if m.PublicURL = strings.TrimSpace(m.PublicURL); m.PublicURL == "" {
		m.PublicURL = envValue("R2_PUBLIC_URL")
	}
	m.PublicURL = strings.TrimRight(m.PublicURL, "/")
	m.Region = orDefault(m.Region, defaultMirrorRegion)
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.DefaultDelaySeconds < 0 {
		c.Pipeline.DefaultDelaySeconds = 0
	}
	if c.Pipeline.TestBatchSize <= 0 {
		c.Pipeline.TestBatchSize = defaultTestBatchSize
	}
	if c.Pipeline.ClaimChunk <= 0 {
		c.Pipeline.ClaimChunk = defaultClaimChunk
	}
	if c.Pipeline.StaleMinutes <= 0 {
		c.Pipeline.StaleMinutes = defaultStaleMinutes
	}
}

func (c *Config) normalizeSearch() {
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = defaultMaxPageSize
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = defaultPageSize
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		c.Search.DefaultPageSize = c.Search.MaxPageSize
	}
	if c.Search.SnippetChars <= 0 {
		c.Search.SnippetChars = defaultSnippetChars
	}
	if c.Search.FacetTTLSeconds <= 0 {
		c.Search.FacetTTLSeconds = defaultFacetTTLSeconds
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = orDefault(c.API.Bind, defaultAPIBind)
	if c.API.Token = strings.TrimSpace(c.API.Token); c.API.Token == "" {
		c.API.Token = envValue("ARCHIVIST_API_TOKEN")
	}
	if c.API.RatePerSecond <= 0 {
		c.API.RatePerSecond = defaultAPIRate
	}
	if c.API.Burst <= 0 {
		c.API.Burst = defaultAPIBurst
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

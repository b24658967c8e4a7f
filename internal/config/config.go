package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	PDFDir       string `toml:"pdf_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
}

// Source describes the upstream catalog website and PDF file server.
type Source struct {
	SearchURL      string `toml:"search_url"`
	PDFBaseURL     string `toml:"pdf_base_url"`
	Collection     string `toml:"collection"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ItemsPerPage   int    `toml:"items_per_page"`
}

// OCR contains the text extraction tool settings.
type OCR struct {
	PdftotextBinary string `toml:"pdftotext_binary"`
	PdftoppmBinary  string `toml:"pdftoppm_binary"`
	TesseractBinary string `toml:"tesseract_binary"`
	Languages       string `toml:"languages"`
	DPI             int    `toml:"dpi"`
	MinNativeChars  int    `toml:"min_native_chars"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Provider holds connection settings for one analysis provider.
type Provider struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	MaxTokens      int    `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Analysis configures the AI summarization chain.
type Analysis struct {
	Primary      Provider `toml:"primary"`
	Fallback     Provider `toml:"fallback"`
	MaxChars     int      `toml:"max_chars"`
	MinChars     int      `toml:"min_chars"`
	TagRulesPath string   `toml:"tag_rules_path"`
}

// Mirror contains S3-compatible object storage settings (Cloudflare R2 by default).
type Mirror struct {
	Endpoint        string `toml:"endpoint"`
	AccountID       string `toml:"account_id"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	PublicURL       string `toml:"public_url"`
	UseSSL          bool   `toml:"use_ssl"`
}

// Pipeline contains batch execution defaults.
type Pipeline struct {
	DefaultDelaySeconds float64 `toml:"default_delay_seconds"`
	TestBatchSize       int     `toml:"test_batch_size"`
	ClaimChunk          int     `toml:"claim_chunk"`
	StaleMinutes        int     `toml:"stale_minutes"`
}

// Search contains read-path tuning.
type Search struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
	SnippetChars    int `toml:"snippet_chars"`
	FacetTTLSeconds int `toml:"facet_ttl_seconds"`
}

// API contains HTTP server settings.
type API struct {
	Bind          string  `toml:"bind"`
	Token         string  `toml:"token"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Burst         int     `toml:"burst"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for archivist.
//
// Configuration sections by subsystem:
//   - Paths: data, PDF, and log directories plus the catalog database
//   - Source: catalog search pages and the PDF file server
//   - OCR: pdftotext/pdftoppm/tesseract settings
//   - Analysis: primary and fallback summarization providers
//   - Mirror: object storage bucket and credentials
//   - Pipeline: batch delay, test batch size, stuck-claim threshold
//   - Search: page sizes, snippet length, facet cache TTL
//   - API: HTTP bind address, bearer token, rate limit
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Source   Source   `toml:"source"`
	OCR      OCR      `toml:"ocr"`
	Analysis Analysis `toml:"analysis"`
	Mirror   Mirror   `toml:"mirror"`
	Pipeline Pipeline `toml:"pipeline"`
	Search   Search   `toml:"search"`
	API      API      `toml:"api"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("archivist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, PDF, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.PDFDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SourceTimeout returns the HTTP timeout for catalog and PDF requests.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// OCRTimeout returns the per-invocation deadline for OCR tools.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCR.TimeoutSeconds) * time.Second
}

// FacetTTL returns the facet cache time-to-live.
func (c *Config) FacetTTL() time.Duration {
	return time.Duration(c.Search.FacetTTLSeconds) * time.Second
}

// DefaultDelay returns the pause between external calls in a batch.
func (c *Config) DefaultDelay() time.Duration {
	return time.Duration(c.Pipeline.DefaultDelaySeconds * float64(time.Second))
}

// StaleAfter returns the age after which an in_progress claim is considered abandoned.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Pipeline.StaleMinutes) * time.Minute
}

// MirrorEndpoint resolves the S3 endpoint host, deriving the R2 host from the
// account id when no explicit endpoint is configured.
func (c *Config) MirrorEndpoint() string {
	endpoint := strings.TrimSpace(c.Mirror.Endpoint)
	if endpoint == "" && c.Mirror.AccountID != "" {
		endpoint = c.Mirror.AccountID + ".r2.cloudflarestorage.com"
	}
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimSuffix(endpoint, "/")
}

// MirrorConfigured reports whether enough credentials exist to reach the bucket.
func (c *Config) MirrorConfigured() bool {
	return c.MirrorEndpoint() != "" && c.Mirror.AccessKeyID != "" &&
		c.Mirror.SecretAccessKey != "" && c.Mirror.Bucket != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the config as TOML with secrets redacted.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.Analysis.Primary.APIKey = redact(c.Analysis.Primary.APIKey)
	redacted.Analysis.Fallback.APIKey = redact(c.Analysis.Fallback.APIKey)
	redacted.Mirror.SecretAccessKey = redact(c.Mirror.SecretAccessKey)
	redacted.API.Token = redact(c.API.Token)
	data, err := toml.Marshal(redacted)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}

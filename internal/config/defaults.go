package config

const (
	defaultConfigPath       = "~/.config/archivist/config.toml"
	defaultDataDir          = "~/.local/share/archivist"
	defaultPDFDir           = "~/.local/share/archivist/pdfs"
	defaultLogDir           = "~/.local/share/archivist/logs"
	defaultDatabaseName     = "catalog.db"
	defaultSearchURL        = "https://digitalcollections.library.cmu.edu/search"
	defaultPDFBaseURL       = "http://iiif.library.cmu.edu/file"
	defaultCollection       = "Herbert Simon"
	defaultUserAgent        = "archivist/dev (+https://digitalcollections.library.cmu.edu)"
	defaultSourceTimeout    = 60
	defaultItemsPerPage     = 25
	defaultOCRLanguages     = "eng+chi_sim+chi_tra"
	defaultOCRDPI           = 200
	defaultMinNativeChars   = 50
	defaultOCRTimeout       = 300
	defaultPrimaryBaseURL   = "https://api.deepseek.com/chat/completions"
	defaultPrimaryModel     = "deepseek-chat"
	defaultFallbackBaseURL  = "https://api.anthropic.com/v1/messages"
	defaultFallbackModel    = "claude-3-haiku-20240307"
	defaultMaxTokens        = 1000
	defaultProviderTimeout  = 60
	defaultAnalysisMaxChars = 8000
	defaultAnalysisMinChars = 20
	defaultMirrorRegion     = "auto"
	defaultDelaySeconds     = 0.5
	defaultTestBatchSize    = 3
	defaultClaimChunk       = 25
	defaultStaleMinutes     = 60
	defaultPageSize         = 25
	defaultMaxPageSize      = 100
	defaultSnippetChars     = 500
	defaultFacetTTLSeconds  = 300
	defaultAPIBind          = "127.0.0.1:5000"
	defaultAPIRate          = 10
	defaultAPIBurst         = 20
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			PDFDir:  defaultPDFDir,
			LogDir:  defaultLogDir,
		},
		Source: Source{
			SearchURL:      defaultSearchURL,
			PDFBaseURL:     defaultPDFBaseURL,
			Collection:     defaultCollection,
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultSourceTimeout,
			ItemsPerPage:   defaultItemsPerPage,
		},
		OCR: OCR{
			PdftotextBinary: "pdftotext",
			PdftoppmBinary:  "pdftoppm",
			TesseractBinary: "tesseract",
			Languages:       defaultOCRLanguages,
			DPI:             defaultOCRDPI,
			MinNativeChars:  defaultMinNativeChars,
			TimeoutSeconds:  defaultOCRTimeout,
		},
		Analysis: Analysis{
			Primary: Provider{
				BaseURL:        defaultPrimaryBaseURL,
				Model:          defaultPrimaryModel,
				MaxTokens:      defaultMaxTokens,
				TimeoutSeconds: defaultProviderTimeout,
			},
			Fallback: Provider{
				BaseURL:        defaultFallbackBaseURL,
				Model:          defaultFallbackModel,
				MaxTokens:      defaultMaxTokens,
				TimeoutSeconds: defaultProviderTimeout,
			},
			MaxChars: defaultAnalysisMaxChars,
			MinChars: defaultAnalysisMinChars,
		},
		Mirror: Mirror{
			Region: defaultMirrorRegion,
			UseSSL: true,
		},
		Pipeline: Pipeline{
			DefaultDelaySeconds: defaultDelaySeconds,
			TestBatchSize:       defaultTestBatchSize,
			ClaimChunk:          defaultClaimChunk,
			StaleMinutes:        defaultStaleMinutes,
		},
		Search: Search{
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     defaultMaxPageSize,
			SnippetChars:    defaultSnippetChars,
			FacetTTLSeconds: defaultFacetTTLSeconds,
		},
		API: API{
			Bind:          defaultAPIBind,
			RatePerSecond: defaultAPIRate,
			Burst:         defaultAPIBurst,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

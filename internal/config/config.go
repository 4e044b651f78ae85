package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// MissingError reports a required setting that is absent.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s is required", e.Key)
}

type Config struct {
	Port string

	// Auth
	APIKey string

	// Claude summarization and answers
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// Embeddings
	EmbeddingProvider   string // "openai" or "hash"
	EmbeddingURL        string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbedBatchSize      int

	// Storage
	IndexDir string
	ImageDir string

	// Partitioning
	PageFirst       int
	PageLast        int
	PDFTextFallback bool

	// Chunking
	TitleMaxLen  int
	TitlePattern string

	// Summarizer throughput
	SummaryInterval    time.Duration
	SummaryBurst       int
	SummaryConcurrency int
	LLMMaxRetries      int

	// Retrieval
	RetrievalK int
	AskTimeout time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Logging
	LogLevel slog.Level
	LogJSON  bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("MANUALRAG_API_KEY"),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		AnthropicBaseURL: envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),

		EmbeddingProvider:   strings.ToLower(envOr("EMBEDDING_PROVIDER", "hash")),
		EmbeddingURL:        envOr("EMBEDDING_URL", "https://api.openai.com"),
		EmbeddingAPIKey:     os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:      envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 384),
		EmbedBatchSize:      envInt("EMBED_BATCH_SIZE", 32),

		IndexDir: envOr("INDEX_DIR", "output/index"),
		ImageDir: envOr("IMAGE_DIR", "output/extracted_images"),

		PageFirst: envInt("PAGE_FIRST", 0),
		PageLast:  envInt("PAGE_LAST", 0),

		PDFTextFallback: envBool("PDF_FALLBACK_PDFTOTEXT", false),

		TitleMaxLen:  envInt("TITLE_MAX_LEN", 150),
		TitlePattern: os.Getenv("TITLE_PATTERN"),

		SummaryInterval:    envDuration("SUMMARY_INTERVAL", 2*time.Second),
		SummaryBurst:       envInt("SUMMARY_BURST", 1),
		SummaryConcurrency: envInt("SUMMARY_CONCURRENCY", 1),
		LLMMaxRetries:      envInt("LLM_MAX_RETRIES", 2),

		RetrievalK: envInt("RETRIEVAL_K", 5),
		AskTimeout: envDuration("ASK_TIMEOUT", 5*time.Minute),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
		LogJSON:  envBool("LOG_JSON", true),
	}

	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = 384
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 32
	}
	if cfg.PageFirst < 0 {
		cfg.PageFirst = 0
	}
	if cfg.PageLast < 0 {
		cfg.PageLast = 0
	}
	if cfg.TitleMaxLen <= 0 {
		cfg.TitleMaxLen = 150
	}
	if cfg.SummaryInterval < 0 {
		cfg.SummaryInterval = 0
	}
	if cfg.SummaryBurst <= 0 {
		cfg.SummaryBurst = 1
	}
	if cfg.SummaryConcurrency <= 0 {
		cfg.SummaryConcurrency = 1
	}
	if cfg.LLMMaxRetries < 0 {
		cfg.LLMMaxRetries = 2
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = 5
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// validateCommon checks settings every role needs.
func (c Config) validateCommon() error {
	switch c.EmbeddingProvider {
	case "hash":
	case "openai":
		if c.EmbeddingURL == "" {
			return &MissingError{Key: "EMBEDDING_URL"}
		}
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai or hash, got %q", c.EmbeddingProvider)
	}
	if c.IndexDir == "" {
		return &MissingError{Key: "INDEX_DIR"}
	}
	if c.PageFirst > 0 && c.PageLast > 0 && c.PageFirst > c.PageLast {
		return fmt.Errorf("PAGE_FIRST (%d) is after PAGE_LAST (%d)", c.PageFirst, c.PageLast)
	}
	return nil
}

// ValidateIngest checks what ingestion needs: summaries require the LLM key.
func (c Config) ValidateIngest() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.AnthropicAPIKey == "" {
		return &MissingError{Key: "ANTHROPIC_API_KEY"}
	}
	return nil
}

// ValidateQuery checks what answering questions needs.
func (c Config) ValidateQuery() error {
	if err := c.validateCommon(); err != nil {
		return err
	}
	if c.AnthropicAPIKey == "" {
		return &MissingError{Key: "ANTHROPIC_API_KEY"}
	}
	return nil
}

// ValidateServe checks what the HTTP service needs.
func (c Config) ValidateServe() error {
	if err := c.ValidateIngest(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return &MissingError{Key: "MANUALRAG_API_KEY"}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}

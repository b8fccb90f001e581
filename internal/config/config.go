package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	APIMaxConnections   int
	APIRateLimitRPS     float64
	APIRateLimitBurst   int
	APIMaxInFlight      int
	APIBackpressureWait time.Duration
	APIReadTimeout      time.Duration
	APIWriteTimeout     time.Duration
	MaxUploadMB         int
	MCPEnabled          bool

	StoragePath string
	IndexRoot   string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string
	OllamaTimeout    time.Duration
	LLMTemperature   float64

	// RerankBackend is "tei" (cross-encoder) or "lexical" (token overlap,
	// for running without a rerank service).
	RerankBackend string
	RerankURL     string
	RerankModel   string
	RerankTimeout time.Duration

	ChunkSize       int
	ChunkOverlap    int
	RAGPerDocumentK int
	RAGTopK         int

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	InboxPath         string
	InboxFileTimeout  time.Duration
	WorkerMetricsPort string

	ResilienceRetryMaxAttempts    int
	ResilienceRetryInitialBackoff time.Duration
	ResilienceRetryMaxBackoff     time.Duration
	ResilienceBreakerEnabled      bool
	ResilienceBreakerMinRequests  int
	ResilienceBreakerFailureRatio float64
	ResilienceBreakerOpenTimeout  time.Duration
}

// Load reads configuration from the environment. Keys missing from the
// environment fall back to the YAML file named by CONFIG_FILE, then to
// built-in defaults.
func Load() Config {
	fileValues, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Warn("config_file_ignored", "path", os.Getenv("CONFIG_FILE"), "error", err)
	}
	s := source{file: fileValues}

	return Config{
		APIPort:  s.mustEnv("API_PORT", "8080"),
		LogLevel: s.mustEnv("LOG_LEVEL", "info"),

		APIMaxConnections:   s.mustEnvInt("API_MAX_CONNECTIONS", 256),
		APIRateLimitRPS:     s.mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:   s.mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:      s.mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWait: s.mustEnvDuration("API_BACKPRESSURE_WAIT", 2*time.Second),
		APIReadTimeout:      s.mustEnvDuration("API_READ_TIMEOUT", 60*time.Second),
		APIWriteTimeout:     s.mustEnvDuration("API_WRITE_TIMEOUT", 10*time.Minute),
		MaxUploadMB:         s.mustEnvInt("MAX_UPLOAD_MB", 64),
		MCPEnabled:          s.mustEnvBool("MCP_ENABLED", true),

		StoragePath: s.mustEnv("STORAGE_PATH", "./data/uploads"),
		IndexRoot:   s.mustEnv("INDEX_ROOT", "./data/indexes"),

		OllamaURL:        s.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   s.mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: s.mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaTimeout:    s.mustEnvDuration("OLLAMA_TIMEOUT", 120*time.Second),
		LLMTemperature:   s.mustEnvFloat("LLM_TEMPERATURE", 0.1),

		RerankBackend: s.mustEnv("RERANK_BACKEND", "tei"),
		RerankURL:     s.mustEnv("RERANK_URL", "http://localhost:8081"),
		RerankModel:   s.mustEnv("RERANK_MODEL", ""),
		RerankTimeout: s.mustEnvDuration("RERANK_TIMEOUT", 60*time.Second),

		ChunkSize:       s.mustEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:    s.mustEnvInt("CHUNK_OVERLAP", 100),
		RAGPerDocumentK: s.mustEnvInt("RAG_PER_DOCUMENT_K", 10),
		RAGTopK:         s.mustEnvInt("RAG_TOP_K", 5),

		PostgresDSN: s.mustEnv("POSTGRES_DSN", ""),

		NATSURL:     s.mustEnv("NATS_URL", ""),
		NATSSubject: s.mustEnv("NATS_SUBJECT", "documents.indexed"),

		InboxPath:         s.mustEnv("INBOX_PATH", "./data/inbox"),
		InboxFileTimeout:  s.mustEnvDuration("INBOX_FILE_TIMEOUT", 10*time.Minute),
		WorkerMetricsPort: s.mustEnv("WORKER_METRICS_PORT", "9090"),

		ResilienceRetryMaxAttempts:    s.mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 1),
		ResilienceRetryInitialBackoff: s.mustEnvDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 100*time.Millisecond),
		ResilienceRetryMaxBackoff:     s.mustEnvDuration("RESILIENCE_RETRY_MAX_BACKOFF", 400*time.Millisecond),
		ResilienceBreakerEnabled:      s.mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests:  s.mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 5),
		ResilienceBreakerFailureRatio: s.mustEnvFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.6),
		ResilienceBreakerOpenTimeout:  s.mustEnvDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
	}
}

// readFile parses a flat YAML mapping of environment keys to values.
func readFile(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		out[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go duration strings and bare integers as seconds.
func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

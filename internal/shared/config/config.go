package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	SQSQueueURL     string

	LLMProvider     string
	LLMModel        string
	LLMRateLimit    float64
	LLMTimeout      time.Duration
	GeminiAPIKey    string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	CallBudget      int
	WorkflowTimeout time.Duration
	MaxRevisions    int

	MongoURI        string
	MongoDB         string
	MongoCollection string

	WorkerConcurrency int
}

// Load reads configuration from environment variables with sensible defaults.
// A TOML file named by CONFIG_FILE, when present, fills in anything the
// environment leaves unset.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config file ignored: %v", err)
	}
	get := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		if val, ok := file.lookup(key); ok {
			return val
		}
		return def
	}

	env := normalizeEnv(get("ENV", "dev"))
	dbURL := get("DATABASE_URL", "")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            get("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(get("CORS_ALLOW_ORIGINS", "http://localhost:8501")),
		Env:             env,
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(get("OBJECT_STORE", "local")),
		LocalStoreDir:   get("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       get("AWS_REGION", ""),
		S3Bucket:        get("S3_BUCKET", ""),
		S3Prefix:        get("S3_PREFIX", ""),
		SSEKMSKeyID:     get("SSE_KMS_KEY_ID", ""),
		SQSQueueURL:     get("SQS_QUEUE_URL", ""),

		LLMProvider:     normalizeProvider(get("LLM_PROVIDER", "gemini")),
		LLMModel:        get("LLM_MODEL", ""),
		LLMRateLimit:    parseFloat(get("LLM_RATE_LIMIT", "1")),
		LLMTimeout:      parseSeconds(get("LLM_TIMEOUT_SECONDS", "120"), 120*time.Second),
		GeminiAPIKey:    get("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    get("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   get("OPENAI_BASE_URL", ""),
		CallBudget:      parseInt(get("LLM_CALL_BUDGET", "2"), 2),
		WorkflowTimeout: parseSeconds(get("WORKFLOW_TIMEOUT_SECONDS", "300"), 300*time.Second),
		MaxRevisions:    parseInt(get("WORKFLOW_MAX_REVISIONS", "3"), 3),

		MongoURI:        get("MONGODB_ATLAS_CLUSTER_URI", ""),
		MongoDB:         get("MONGODB_DB_NAME", "test_db"),
		MongoCollection: get("MONGODB_COLLECTION_NAME", "cost_collection_pdf"),

		WorkerConcurrency: parseInt(get("WORKER_CONCURRENCY", "2"), 2),
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}

func parseFloat(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f <= 0 {
		return 1
	}
	return f
}

func parseSeconds(raw string, def time.Duration) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "fake", "heuristic":
		return "fake"
	case "none", "off":
		return "none"
	default:
		return "gemini"
	}
}

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the env keys in grouped TOML tables.
//
//	[server]
//	port = "8080"
//	[workflow]
//	timeout_seconds = 300
//	max_revisions = 3
type fileConfig struct {
	Server struct {
		Port        string   `toml:"port"`
		Env         string   `toml:"env"`
		CORSOrigins []string `toml:"cors_allow_origins"`
		DatabaseURL string   `toml:"database_url"`
	} `toml:"server"`
	Storage struct {
		Type     string `toml:"type"`
		LocalDir string `toml:"local_dir"`
		Region   string `toml:"region"`
		Bucket   string `toml:"bucket"`
		Prefix   string `toml:"prefix"`
		KMSKeyID string `toml:"kms_key_id"`
	} `toml:"storage"`
	Queue struct {
		URL         string `toml:"url"`
		Concurrency int    `toml:"concurrency"`
	} `toml:"queue"`
	LLM struct {
		Provider       string  `toml:"provider"`
		Model          string  `toml:"model"`
		RateLimit      float64 `toml:"rate_limit"`
		TimeoutSeconds int     `toml:"timeout_seconds"`
		CallBudget     int     `toml:"call_budget"`
		BaseURL        string  `toml:"base_url"`
	} `toml:"llm"`
	Workflow struct {
		TimeoutSeconds int `toml:"timeout_seconds"`
		MaxRevisions   int `toml:"max_revisions"`
	} `toml:"workflow"`
	Mongo struct {
		URI        string `toml:"uri"`
		Database   string `toml:"database"`
		Collection string `toml:"collection"`
	} `toml:"mongo"`
}

type fileValues map[string]string

func (f fileValues) lookup(key string) (string, bool) {
	val, ok := f[key]
	return val, ok && val != ""
}

func loadFile(path string) (fileValues, error) {
	if strings.TrimSpace(path) == "" {
		return fileValues{}, nil
	}
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fileValues{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc.values(), nil
}

func (fc fileConfig) values() fileValues {
	itoa := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	ftoa := func(f float64) string {
		if f == 0 {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fileValues{
		"PORT":                      fc.Server.Port,
		"ENV":                       fc.Server.Env,
		"CORS_ALLOW_ORIGINS":        strings.Join(fc.Server.CORSOrigins, ","),
		"DATABASE_URL":              fc.Server.DatabaseURL,
		"OBJECT_STORE":              fc.Storage.Type,
		"LOCAL_STORE_DIR":           fc.Storage.LocalDir,
		"AWS_REGION":                fc.Storage.Region,
		"S3_BUCKET":                 fc.Storage.Bucket,
		"S3_PREFIX":                 fc.Storage.Prefix,
		"SSE_KMS_KEY_ID":            fc.Storage.KMSKeyID,
		"SQS_QUEUE_URL":             fc.Queue.URL,
		"WORKER_CONCURRENCY":        itoa(fc.Queue.Concurrency),
		"LLM_PROVIDER":              fc.LLM.Provider,
		"LLM_MODEL":                 fc.LLM.Model,
		"LLM_RATE_LIMIT":            ftoa(fc.LLM.RateLimit),
		"LLM_TIMEOUT_SECONDS":       itoa(fc.LLM.TimeoutSeconds),
		"LLM_CALL_BUDGET":           itoa(fc.LLM.CallBudget),
		"OPENAI_BASE_URL":           fc.LLM.BaseURL,
		"WORKFLOW_TIMEOUT_SECONDS":  itoa(fc.Workflow.TimeoutSeconds),
		"WORKFLOW_MAX_REVISIONS":    itoa(fc.Workflow.MaxRevisions),
		"MONGODB_ATLAS_CLUSTER_URI": fc.Mongo.URI,
		"MONGODB_DB_NAME":           fc.Mongo.Database,
		"MONGODB_COLLECTION_NAME":   fc.Mongo.Collection,
	}
}

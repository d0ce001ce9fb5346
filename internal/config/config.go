// Package config loads environment-driven settings, optionally seeded from
// a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"simagent/internal/store"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultEngineURL   = "http://localhost:8090"
	defaultWorkDir     = "out"
	defaultMaxAttempts = 3
	defaultTimeout     = 2 * time.Minute
)

// Config carries everything the CLI needs to wire the agent together.
type Config struct {
	APIKey      string
	Model       string
	EngineURL   string
	WorkDir     string
	RulesPath   string
	MaxAttempts int
	Timeout     time.Duration
	Artifact    ArtifactConfig
}

// ArtifactConfig configures the optional S3 artifact mirror.
type ArtifactConfig struct {
	Enabled bool
	S3      store.S3Config
}

// Load reads .env (when present) and the environment, applying defaults.
// Invalid numeric values fall back to the default with a log line rather
// than failing startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:       getenv("SIMAGENT_MODEL", defaultModel),
		EngineURL:   getenv("SIMAGENT_ENGINE_URL", defaultEngineURL),
		WorkDir:     getenv("SIMAGENT_WORKDIR", defaultWorkDir),
		RulesPath:   strings.TrimSpace(os.Getenv("SIMAGENT_RULES")),
		MaxAttempts: getint("SIMAGENT_MAX_ATTEMPTS", defaultMaxAttempts),
		Timeout:     getduration("SIMAGENT_EXEC_TIMEOUT", defaultTimeout),
		Artifact:    loadArtifactConfig(),
	}
	return cfg, nil
}

func loadArtifactConfig() ArtifactConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
	if endpoint == "" {
		return ArtifactConfig{}
	}
	return ArtifactConfig{
		Enabled: true,
		S3: store.S3Config{
			Endpoint:  endpoint,
			Region:    getenv("ARTIFACT_S3_REGION", "us-east-1"),
			AccessKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
			SecretKey: firstNonEmpty(os.Getenv("ARTIFACT_S3_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
			Bucket:    getenv("ARTIFACT_S3_BUCKET", "simagent-artifacts"),
			UseSSL:    getbool("ARTIFACT_S3_USE_SSL", false),
		},
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getbool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

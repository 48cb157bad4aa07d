package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	HTTPPort     string
	HTTPSPort    string
	Domains      []string
	CertCacheDir string

	DatabaseURL string

	OpenAIAPIKey       string
	EmbeddingModel     string
	EmbeddingDimension int
	SummaryModel       string

	ChunkSize    int
	ChunkOverlap int
	ChunkMinSize int

	QueryTopK           int
	ExternalCallTimeout time.Duration

	// ProcessingLease bounds how long a document may sit in "processing"
	// before the maintenance loop marks it failed.
	ProcessingLease     time.Duration
	MaintenanceInterval time.Duration
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "8086"),
		HTTPSPort:    getEnv("HTTPS_PORT", "443"),
		Domains:      []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir: getEnv("CERT_CACHE_DIR", "../docquery_certs"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		SummaryModel:       getEnv("SUMMARY_MODEL", "gpt-4o-mini"),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 100),
		ChunkMinSize: getEnvAsInt("CHUNK_MIN_SIZE", 200),

		QueryTopK:           getEnvAsInt("QUERY_TOP_K", 5),
		ExternalCallTimeout: time.Duration(getEnvAsInt("EXTERNAL_CALL_TIMEOUT", 120)) * time.Second,

		ProcessingLease:     time.Duration(getEnvAsInt("PROCESSING_LEASE", 900)) * time.Second,
		MaintenanceInterval: time.Duration(getEnvAsInt("MAINTENANCE_INTERVAL", 300)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

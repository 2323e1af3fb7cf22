package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Backend selects which set of adapters backs the retrieval pipeline.
const (
	BackendGCP   = "gcp"
	BackendLocal = "local"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxConns int
	MinConns int
}

type VertexConfig struct {
	ProjectID       string
	Region          string
	EmbeddingModel  string
	GenerationModel string
	EmbedTimeout    int // seconds
	GenerateTimeout int // seconds
	GenerateQPS     float64
}

type VectorSearchConfig struct {
	// EndpointURL is the full index endpoint resource URL, e.g.
	// https://<host>/v1/projects/<p>/locations/<r>/indexEndpoints/<id>
	EndpointURL     string
	DeployedIndexID string
	Timeout         int
}

type DocstoreConfig struct {
	ProjectID  string
	Database   string
	Collection string
	Timeout    int
}

type BlobConfig struct {
	ChunksBucket  string
	UploadsBucket string
	LocalRoot     string
	Timeout       int
}

type OllamaConfig struct {
	URL             string
	EmbeddingModel  string
	GenerationModel string
	Timeout         int
}

type RAGConfig struct {
	TopK            int
	MaxOutputTokens int
	Temperature     float64
}

type Config struct {
	Env         string
	Port        string
	Backend     string
	OTelEnabled bool

	DB           DBConfig
	Vertex       VertexConfig
	VectorSearch VectorSearchConfig
	Docstore     DocstoreConfig
	Blob         BlobConfig
	Ollama       OllamaConfig
	RAG          RAGConfig
}

// Load reads configuration from the environment. A .env file next to the
// binary is honored when present, matching local development setups.
func Load() *Config {
	_ = godotenv.Load()

	projectID := getEnv("PROJECT_ID", "campus-connect")
	region := getEnv("REGION", "us-central1")

	return &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8000"),
		Backend:     getEnv("RAG_BACKEND", BackendGCP),
		OTelEnabled: getEnvBool("OTEL_ENABLED", false),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "rag-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rag_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
			Name:     getEnv("DB_NAME", "rag_db"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
			MinConns: getEnvInt("DB_MIN_CONNS", 2),
		},
		Vertex: VertexConfig{
			ProjectID:       projectID,
			Region:          region,
			EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-004"),
			GenerationModel: getEnv("GENERATION_MODEL", "gemini-2.0-flash"),
			EmbedTimeout:    getEnvInt("EMBED_TIMEOUT_SECONDS", 10),
			GenerateTimeout: getEnvInt("GENERATE_TIMEOUT_SECONDS", 30),
			GenerateQPS:     getEnvFloat("GENERATE_QPS", 2),
		},
		VectorSearch: VectorSearchConfig{
			EndpointURL:     getEnv("VECTOR_ENDPOINT_URL", ""),
			DeployedIndexID: getEnv("DEPLOYED_INDEX_ID", ""),
			Timeout:         getEnvInt("VECTOR_SEARCH_TIMEOUT_SECONDS", 10),
		},
		Docstore: DocstoreConfig{
			ProjectID:  projectID,
			Database:   getEnv("FIRESTORE_DB", "default"),
			Collection: getEnv("FIRESTORE_COLLECTION", "group_files"),
			Timeout:    getEnvInt("DOCSTORE_TIMEOUT_SECONDS", 10),
		},
		Blob: BlobConfig{
			ChunksBucket:  getEnv("GCS_CHUNKS_BUCKET", "sync_chunks"),
			UploadsBucket: getEnv("GCS_BUCKET_NAME", "studysync"),
			LocalRoot:     getEnv("BLOB_LOCAL_ROOT", "./data/blobs"),
			Timeout:       getEnvInt("BLOB_TIMEOUT_SECONDS", 15),
		},
		Ollama: OllamaConfig{
			URL:             getEnv("OLLAMA_URL", "http://localhost:11434"),
			EmbeddingModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "embeddinggemma"),
			GenerationModel: getEnv("OLLAMA_GENERATION_MODEL", "gemma3:4b"),
			Timeout:         getEnvInt("OLLAMA_TIMEOUT_SECONDS", 60),
		},
		RAG: RAGConfig{
			TopK:            getEnvInt("RAG_TOP_K", 3),
			MaxOutputTokens: getEnvInt("RAG_MAX_OUTPUT_TOKENS", 1024),
			Temperature:     getEnvFloat("RAG_TEMPERATURE", 0.3),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

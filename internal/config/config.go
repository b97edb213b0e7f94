package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	SelectionDiversity = "diversity"
	SelectionCoverage  = "coverage"

	IndexBackendQdrant = "qdrant"
	IndexBackendMemory = "memory"

	CatalogSourceJSON     = "json"
	CatalogSourcePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Catalog  CatalogConfig
	Index    IndexConfig
	Gemini   GeminiConfig
	Storage  StorageConfig
	Worker   WorkerConfig
	RAG      RAGConfig
}

type ServerConfig struct {
	Port    string `validate:"required"`
	Env     string
	LogJSON bool
	Debug   bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type CatalogConfig struct {
	Source       string `validate:"oneof=json postgres"`
	JSONPath     string
	SyncDB       bool
	TrainSetPath string
}

type IndexConfig struct {
	Backend    string `validate:"oneof=qdrant memory"`
	URL        string `validate:"required_if=Backend qdrant"`
	APIKey     string
	Collection string `validate:"required"`
}

type GeminiConfig struct {
	APIKey             string
	Model              string `validate:"required"`
	EmbeddingModel     string `validate:"required"`
	EmbeddingDimension int    `validate:"gte=1"`
	Temperature        float32
	MaxOutputTokens    int `validate:"gte=1"`
	MaxRetries         int `validate:"gte=1,lte=10"`
	CacheSize          int `validate:"gte=0"`
	EmbedTimeout       time.Duration
	JudgeTimeout       time.Duration
	JudgeRetryBackoff  time.Duration
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64 `validate:"gte=1"`
}

type WorkerConfig struct {
	Concurrency         int `validate:"gte=1"`
	EmbeddingBatchSize  int `validate:"gte=1"`
	IndexWriteBatchSize int `validate:"gte=1"`
}

// RAGConfig carries every tunable of the recommendation pipeline.
type RAGConfig struct {
	TopK                 int     `validate:"gte=1"`
	SimilarityThreshold  float64 `validate:"gte=0,lte=1"`
	FallbackThreshold    float64 `validate:"gte=0,lte=1,ltfield=SimilarityThreshold"`
	MinSelect            int     `validate:"gte=1,ltefield=MaxSelect"`
	MaxSelect            int     `validate:"gte=1"`
	EnableReranking      bool
	RerankSkipWhenFits   bool
	RerankCandidateLimit int     `validate:"gte=1"`
	WeightSimilarity     float64 `validate:"gte=0,lte=1"`
	WeightJudge          float64 `validate:"gte=0,lte=1"`
	SelectionPolicy      string  `validate:"oneof=diversity coverage"`
	MaxPerTestType       int     `validate:"gte=1"`
	CoverageScoreBar     float64 `validate:"gte=0,lte=1"`
	CoverageTopSkills    int     `validate:"gte=0"`
	EnableQueryExpansion bool
}

var validate = validator.New()

// Load reads .env (when present), then the optional config file, then the environment.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:    v.GetString("PORT"),
			Env:     v.GetString("ENV"),
			LogJSON: v.GetBool("LOG_JSON"),
			Debug:   v.GetBool("LOG_DEBUG"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
		},
		Catalog: CatalogConfig{
			Source:       strings.ToLower(v.GetString("CATALOG_SOURCE")),
			JSONPath:     v.GetString("CATALOG_JSON_PATH"),
			SyncDB:       v.GetBool("CATALOG_SYNC_DB"),
			TrainSetPath: v.GetString("TRAIN_SET_PATH"),
		},
		Index: IndexConfig{
			Backend:    strings.ToLower(v.GetString("INDEX_BACKEND")),
			URL:        v.GetString("QDRANT_URL"),
			APIKey:     v.GetString("QDRANT_API_KEY"),
			Collection: v.GetString("QDRANT_COLLECTION"),
		},
		Gemini: GeminiConfig{
			APIKey:             v.GetString("GEMINI_API_KEY"),
			Model:              v.GetString("GEMINI_MODEL"),
			EmbeddingModel:     v.GetString("GEMINI_EMBEDDING_MODEL"),
			EmbeddingDimension: v.GetInt("EMBEDDING_DIMENSION"),
			Temperature:        float32(v.GetFloat64("GEMINI_TEMPERATURE")),
			MaxOutputTokens:    v.GetInt("GEMINI_MAX_OUTPUT_TOKENS"),
			MaxRetries:         v.GetInt("LLM_MAX_RETRIES"),
			CacheSize:          v.GetInt("EMBEDDING_CACHE_SIZE"),
			EmbedTimeout:       v.GetDuration("EMBED_TIMEOUT"),
			JudgeTimeout:       v.GetDuration("JUDGE_TIMEOUT"),
			JudgeRetryBackoff:  v.GetDuration("JUDGE_RETRY_BACKOFF"),
		},
		Storage: StorageConfig{
			UploadPath:  v.GetString("UPLOAD_PATH"),
			MaxFileSize: v.GetInt64("MAX_FILE_SIZE"),
		},
		Worker: WorkerConfig{
			Concurrency:         v.GetInt("WORKER_CONCURRENCY"),
			EmbeddingBatchSize:  v.GetInt("EMBEDDING_BATCH_SIZE"),
			IndexWriteBatchSize: v.GetInt("INDEX_WRITE_BATCH_SIZE"),
		},
		RAG: RAGConfig{
			TopK:                 v.GetInt("RAG_TOP_K"),
			SimilarityThreshold:  v.GetFloat64("RAG_SIMILARITY_THRESHOLD"),
			FallbackThreshold:    v.GetFloat64("RAG_SIMILARITY_THRESHOLD_FALLBACK"),
			MinSelect:            v.GetInt("RAG_FINAL_SELECT_MIN"),
			MaxSelect:            v.GetInt("RAG_FINAL_SELECT_MAX"),
			EnableReranking:      v.GetBool("RAG_ENABLE_LLM_RERANKING"),
			RerankSkipWhenFits:   v.GetBool("RAG_RERANK_SKIP_WHEN_FITS"),
			RerankCandidateLimit: v.GetInt("RAG_RERANK_CANDIDATE_LIMIT"),
			WeightSimilarity:     v.GetFloat64("RAG_WEIGHT_SIMILARITY"),
			WeightJudge:          v.GetFloat64("RAG_WEIGHT_JUDGE"),
			SelectionPolicy:      strings.ToLower(v.GetString("RAG_SELECTION_POLICY")),
			MaxPerTestType:       v.GetInt("RAG_MAX_PER_TEST_TYPE"),
			CoverageScoreBar:     v.GetFloat64("RAG_COVERAGE_SCORE_BAR"),
			CoverageTopSkills:    v.GetInt("RAG_COVERAGE_TOP_SKILLS"),
			EnableQueryExpansion: v.GetBool("ENABLE_QUERY_EXPANSION"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if sum := c.RAG.WeightSimilarity + c.RAG.WeightJudge; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("invalid config: RAG_WEIGHT_SIMILARITY + RAG_WEIGHT_JUDGE must be 1, got %.3f", sum)
	}
	return nil
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		"PORT":      "3000",
		"ENV":       "development",
		"LOG_JSON":  false,
		"LOG_DEBUG": false,

		"DB_HOST":     "localhost",
		"DB_PORT":     "5432",
		"DB_USER":     "postgres",
		"DB_PASSWORD": "postgres",
		"DB_NAME":     "assessment_recommender",

		"CATALOG_SOURCE":    CatalogSourceJSON,
		"CATALOG_JSON_PATH": "./data/shl_assessments.json",
		"CATALOG_SYNC_DB":   false,
		"TRAIN_SET_PATH":    "./data/labeled_train_set.json",

		"INDEX_BACKEND":     IndexBackendQdrant,
		"QDRANT_URL":        "http://localhost:6334",
		"QDRANT_API_KEY":    "",
		"QDRANT_COLLECTION": "assessments",

		"GEMINI_API_KEY":           "",
		"GEMINI_MODEL":             "gemini-2.5-flash",
		"GEMINI_EMBEDDING_MODEL":   "text-embedding-004",
		"EMBEDDING_DIMENSION":      768,
		"GEMINI_TEMPERATURE":       0.2,
		"GEMINI_MAX_OUTPUT_TOKENS": 2048,
		"LLM_MAX_RETRIES":          3,
		"EMBEDDING_CACHE_SIZE":     1024,
		"EMBED_TIMEOUT":            "15s",
		"JUDGE_TIMEOUT":            "45s",
		"JUDGE_RETRY_BACKOFF":      "1s",

		"UPLOAD_PATH":   "./uploads",
		"MAX_FILE_SIZE": 10485760,

		"WORKER_CONCURRENCY":     3,
		"EMBEDDING_BATCH_SIZE":   20,
		"INDEX_WRITE_BATCH_SIZE": 100,

		"RAG_TOP_K":                         15,
		"RAG_SIMILARITY_THRESHOLD":          0.50,
		"RAG_SIMILARITY_THRESHOLD_FALLBACK": 0.30,
		"RAG_FINAL_SELECT_MIN":              3,
		"RAG_FINAL_SELECT_MAX":              8,
		"RAG_ENABLE_LLM_RERANKING":          true,
		"RAG_RERANK_SKIP_WHEN_FITS":         false,
		"RAG_RERANK_CANDIDATE_LIMIT":        20,
		"RAG_WEIGHT_SIMILARITY":             0.2,
		"RAG_WEIGHT_JUDGE":                  0.8,
		"RAG_SELECTION_POLICY":              SelectionDiversity,
		"RAG_MAX_PER_TEST_TYPE":             3,
		"RAG_COVERAGE_SCORE_BAR":            0.6,
		"RAG_COVERAGE_TOP_SKILLS":           5,
		"ENABLE_QUERY_EXPANSION":            true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ekb/internal/domain"
)

// Supported corpus store drivers.
const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the knowledge base.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Flows     FlowsConfig     `yaml:"flows"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig selects the corpus store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "bolt", "postgres", "sqlite"
	DSN    string `yaml:"dsn"`    // postgres connection string
	Path   string `yaml:"path"`   // bolt / sqlite file
}

// ChunkingConfig holds text segmentation configuration.
type ChunkingConfig struct {
	TargetSize int `yaml:"target_size"` // characters
}

// EmbeddingConfig holds embedding model configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // "hash", "openai", "ollama", "none"
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	DefaultTopK  int `yaml:"default_top_k"`
	MaxTopK      int `yaml:"max_top_k"`
	CacheSize    int `yaml:"cache_size"` // query vectors; 0 disables
	CacheTTLSecs int `yaml:"cache_ttl_secs"`
}

// FlowsConfig locates flow definition files.
type FlowsConfig struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
}

// IngestConfig holds batch ingestion configuration.
type IngestConfig struct {
	Workers  int      `yaml:"workers"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Mode  string `yaml:"mode"` // "dev" or "prod"
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverBolt,
			Path:   filepath.Join(".ekb", "corpus.db"),
		},
		Chunking: ChunkingConfig{
			TargetSize: domain.DefaultChunkSize,
		},
		Embedding: EmbeddingConfig{
			Provider:    "hash",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   domain.EmbeddingDimension,
			TimeoutSecs: 60,
		},
		Search: SearchConfig{
			DefaultTopK:  10,
			MaxTopK:      100,
			CacheSize:    256,
			CacheTTLSecs: 600,
		},
		Flows: FlowsConfig{
			Dir:     "flows",
			Default: "markdown_parser_flow",
		},
		Ingest: IngestConfig{
			Workers:  4,
			Includes: []string{"**/*.md", "**/*.markdown", "**/*.txt"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/.ekb/**"},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Mode:  "dev",
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, then applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	loadDotEnv(filepath.Dir(path))
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ekb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"ekb.yaml", filepath.Join(".ekb", "config.yaml")} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := DefaultConfig()
	loadDotEnv(dir)
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations the rest of the system cannot honor.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverBolt, DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for driver \"postgres\"")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Chunking.TargetSize <= 0 {
		return fmt.Errorf("chunking.target_size must be positive, got %d", c.Chunking.TargetSize)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Provider == "hash" && c.Embedding.Dimension != domain.EmbeddingDimension {
		return fmt.Errorf("embedding.dimension must be %d for the hash model, got %d",
			domain.EmbeddingDimension, c.Embedding.Dimension)
	}
	if c.Search.MaxTopK < 1 || c.Search.MaxTopK > 100 {
		return fmt.Errorf("search.max_top_k must be between 1 and 100, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and %d, got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 1
	}
	return nil
}

// ResolvePaths makes relative file locations absolute against root.
func (c *Config) ResolvePaths(root string) {
	if c.Database.Path != "" && !filepath.IsAbs(c.Database.Path) {
		c.Database.Path = filepath.Join(root, c.Database.Path)
	}
	if c.Flows.Dir != "" && !filepath.IsAbs(c.Flows.Dir) {
		c.Flows.Dir = filepath.Join(root, c.Flows.Dir)
	}
}

func loadDotEnv(dir string) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err == nil {
		// Existing environment variables win over .env entries.
		_ = godotenv.Load(path)
	}
}

func (c *Config) applyEnv() {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		c.Database.Driver = DriverPostgres
		c.Database.DSN = dsn
	}
	if v := strings.TrimSpace(os.Getenv("EKB_DB_DRIVER")); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("EKB_DB_PATH")); v != "" {
		c.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("EKB_EMBEDDING_PROVIDER")); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("EKB_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("EKB_SERVER_ADDR")); v != "" {
		c.Server.Addr = v
	}
}

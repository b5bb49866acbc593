// Package config provides configuration loading for the kotae service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Speech    SpeechConfig    `yaml:"speech"`
	Responder ResponderConfig `yaml:"responder"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for per-collection data and the call log database.
type StorageConfig struct {
	// DataDir contains one subdirectory per collection, each holding a
	// knowledge/ documents directory and a vector_store/ snapshot.
	DataDir     string `yaml:"data_dir"`
	CallLogPath string `yaml:"call_log_path"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	Backend    string `yaml:"backend"` // openai, onnx, mock
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds chunking and search settings.
type RetrievalConfig struct {
	TopK         int    `yaml:"top_k"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	DefaultOrg   string `yaml:"default_org"`
}

// SpeechConfig holds transcription settings.
type SpeechConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// ResponderConfig holds reply-generation settings.
type ResponderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// WatchConfig holds knowledge-directory watch settings for server mode.
type WatchConfig struct {
	Enabled bool     `yaml:"enabled"`
	Orgs    []string `yaml:"orgs"`
}

// Load reads and parses the config file at path, loads a .env file next to it
// if present, expands paths, and applies defaults. Returns an error if the
// file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	// API keys and other secrets live in .env, never in the YAML.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Storage.CallLogPath = expandPath(cfg.Storage.CallLogPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// StoreDir returns the vector store snapshot directory for a collection.
func (c *Config) StoreDir(org string) string {
	return filepath.Join(c.Storage.DataDir, org, "vector_store")
}

// KnowledgeDir returns the source documents directory for a collection.
func (c *Config) KnowledgeDir(org string) string {
	return filepath.Join(c.Storage.DataDir, org, "knowledge")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

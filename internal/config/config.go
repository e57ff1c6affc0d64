// Package config provides configuration loading and structs for studyrag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Library   LibraryConfig   `yaml:"library"`
	Provider  ProviderConfig  `yaml:"provider"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the vector index database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LibraryConfig describes the document source: a directory of study PDFs and
// the manifest written by the scraper (filename -> origin URL).
type LibraryConfig struct {
	PDFDir       string   `yaml:"pdf_dir"`
	ManifestPath string   `yaml:"manifest_path"`
	Extensions   []string `yaml:"extensions"`
}

// ProviderConfig holds the embedding/generation service settings.
type ProviderConfig struct {
	Name           string `yaml:"name"` // "openai" or "ollama"
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call timeout for external services.
func (p *ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetrievalConfig holds chunking and retrieval settings.
type RetrievalConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	TopK         int `yaml:"top_k"`
	BatchSize    int `yaml:"batch_size"`
	RetryLimit   int `yaml:"retry_limit"`
	Concurrency  int `yaml:"concurrency"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Library.PDFDir = expandPath(cfg.Library.PDFDir, configDir)
	cfg.Library.ManifestPath = expandPath(cfg.Library.ManifestPath, configDir)

	if err := cfg.Retrieval.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *RetrievalConfig) validate() error {
	if r.ChunkOverlap <= 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("chunk_overlap must be between 1 and chunk_size-1, got overlap=%d size=%d",
			r.ChunkOverlap, r.ChunkSize)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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

// Package config provides configuration loading and structs for the docsift server.
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
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, uploaded files, and search index.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	FilesPath       string `yaml:"files_path"`
	SearchIndexPath string `yaml:"search_index_path"`
}

// Duration wraps time.Duration so YAML values like "10m" decode.
type Duration time.Duration

// UnmarshalYAML decodes a duration string ("10m", "90s").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// QueueConfig holds job queue and worker settings.
type QueueConfig struct {
	Size       int      `yaml:"size"`
	Workers    int      `yaml:"workers"`
	JobTimeout Duration `yaml:"job_timeout"`
}

// PipelineConfig holds metadata pipeline backend settings. All backends are
// optional; extraction degrades to empty output when one is missing.
type PipelineConfig struct {
	TesseractBinary string `yaml:"tesseract_binary"`
	TesseractLang   string `yaml:"tesseract_lang"`
	NERModelPath    string `yaml:"ner_model_path"`
}

// IngestConfig holds the optional drop-directory ingester settings. The
// ingester is disabled when Directory is empty.
type IngestConfig struct {
	Directory  string   `yaml:"directory"`
	TenantID   int64    `yaml:"tenant_id"`
	Extensions []string `yaml:"extensions"`
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
	cfg.Storage.FilesPath = expandPath(cfg.Storage.FilesPath, configDir)
	cfg.Storage.SearchIndexPath = expandPath(cfg.Storage.SearchIndexPath, configDir)
	if cfg.Pipeline.NERModelPath != "" {
		cfg.Pipeline.NERModelPath = expandPath(cfg.Pipeline.NERModelPath, configDir)
	}
	if cfg.Ingest.Directory != "" {
		cfg.Ingest.Directory = expandPath(cfg.Ingest.Directory, configDir)
	}

	return &cfg, nil
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

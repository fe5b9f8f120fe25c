// Package config loads engram configuration from ~/.engram/config.toml,
// with environment variables taking precedence for paths and credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all engram configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Brief    BriefConfig    `toml:"brief"`
	Sessions SessionsConfig `toml:"sessions"`
	Decay    DecayConfig    `toml:"decay"`
	Oracle   OracleConfig   `toml:"oracle"`
	Corpus   CorpusConfig   `toml:"corpus"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type BriefConfig struct {
	OutputPath   string `toml:"output_path"` // fixed path, overwritten each run
	SectionLines int    `toml:"section_lines"`
	MaxTokens    int    `toml:"max_tokens"`
}

type SessionsConfig struct {
	RetentionDays int `toml:"retention_days"`
	BriefEntries  int `toml:"brief_entries"`
}

type DecayConfig struct {
	IntervalDays int `toml:"interval_days"` // lazy sweep before reads when overdue
}

type OracleConfig struct {
	Provider   string `toml:"provider"` // "anthropic" or "mock"
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"` // ANTHROPIC_API_KEY overrides
	TimeoutSec int    `toml:"timeout_seconds"`
	MaxRetries int    `toml:"max_retries"`
}

type CorpusConfig struct {
	Root       string   `toml:"root"`
	Extensions []string `toml:"extensions"`
	MaxFile    int      `toml:"max_file_chars"`
	MaxTotal   int      `toml:"max_total_chars"`
	ReportDir  string   `toml:"report_dir"` // append-only reconciliation artifacts
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

// Default returns a Config with sensible defaults. Database path and
// report dir are resolved at load time relative to the home directory.
func Default() Config {
	return Config{
		Brief: BriefConfig{
			OutputPath:   "engram_brief.md",
			SectionLines: 40,
			MaxTokens:    4000,
		},
		Sessions: SessionsConfig{
			RetentionDays: 30,
			BriefEntries:  10,
		},
		Decay: DecayConfig{
			IntervalDays: 7,
		},
		Oracle: OracleConfig{
			Provider:   "anthropic",
			Model:      "claude-sonnet-4-6",
			TimeoutSec: 120,
			MaxRetries: 3,
		},
		Corpus: CorpusConfig{
			Root:       ".",
			Extensions: []string{".go", ".py", ".md", ".toml", ".yaml", ".yml", ".json", ".html", ".js", ".css"},
			MaxFile:    5000,
			MaxTotal:   700000,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
	}
}

// Path returns the config file location: ~/.engram/config.toml
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".engram", "config.toml"), nil
}

// Load reads the config file if it exists, applying defaults for any
// missing values, then applies environment overrides.
func Load() (Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, decErr := toml.DecodeFile(path, &cfg); decErr != nil {
				return cfg, fmt.Errorf("load config %s: %w", path, decErr)
			}
		}
	}

	if cfg.Database.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Database.Path = filepath.Join(home, ".engram", "engram.db")
		}
	}
	if cfg.Corpus.ReportDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Corpus.ReportDir = filepath.Join(home, ".engram", "reports")
		}
	}

	// Env overrides win over the file.
	if v := os.Getenv("ENGRAM_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string for the API server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Package config resolves filesystem roots and tunables for the session pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the paths and settings used by every pipeline stage.
type Config struct {
	Sources  SourcesConfig  `yaml:"sources"`
	Roots    RootsConfig    `yaml:"roots"`
	Token    TokenConfig    `yaml:"token"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Log      LogConfig      `yaml:"log"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// SourcesConfig locates the two log families.
type SourcesConfig struct {
	Claude string `yaml:"claude"`
	Gemini string `yaml:"gemini"`
}

// RootsConfig holds the directories projects are categorized against.
type RootsConfig struct {
	Home      string `yaml:"home"`
	Workspace string `yaml:"workspace"`
	Src       string `yaml:"src"`
	Shortcuts string `yaml:"shortcuts"`
}

// TokenConfig describes how Claude encodes project directories into folder names.
type TokenConfig struct {
	EncodedPrefix string `yaml:"encoded_prefix"`
	DecodedRoot   string `yaml:"decoded_root"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AnalysisConfig struct {
	Workers int `yaml:"workers"`
}

// Termux home directory as Claude Code encodes it.
const (
	DefaultEncodedPrefix = "-data-data-com-termux-files-home-"
	DefaultDecodedRoot   = "/data/data/com.termux/files/home/"
)

// Default returns a Config rooted at $HOME.
func Default() Config {
	return FromHome(os.Getenv("HOME"))
}

// FromHome returns the default layout under the given home directory.
func FromHome(home string) Config {
	return Config{
		Sources: SourcesConfig{
			Claude: filepath.Join(home, ".claude", "projects"),
			Gemini: filepath.Join(home, ".gemini", "tmp"),
		},
		Roots: RootsConfig{
			Home:      home,
			Workspace: filepath.Join(home, "workspace"),
			Src:       filepath.Join(home, "src"),
			Shortcuts: filepath.Join(home, ".shortcuts"),
		},
		Token: TokenConfig{
			EncodedPrefix: DefaultEncodedPrefix,
			DecodedRoot:   DefaultDecodedRoot,
		},
		Catalog: CatalogConfig{
			Path: filepath.Join(home, ".assemblylook", "catalog.duckdb"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Analysis: AnalysisConfig{
			Workers: 4,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and environment variables,
// in that order of precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("ASSEMBLYLOOK_CONFIG"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if dir := os.Getenv("ASSEMBLYLOOK_CLAUDE_DIR"); dir != "" {
		cfg.Sources.Claude = dir
	}
	if dir := os.Getenv("ASSEMBLYLOOK_GEMINI_DIR"); dir != "" {
		cfg.Sources.Gemini = dir
	}
	if dir := os.Getenv("ASSEMBLYLOOK_WORKSPACE"); dir != "" {
		cfg.Roots.Workspace = dir
	}
	if path := os.Getenv("ASSEMBLYLOOK_CATALOG"); path != "" {
		cfg.Catalog.Path = path
	}
	if level := os.Getenv("ASSEMBLYLOOK_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if workers := os.Getenv("ASSEMBLYLOOK_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ASSEMBLYLOOK_WORKERS: %w", err)
		}
		cfg.Analysis.Workers = n
	}
	if cfg.Analysis.Workers < 1 {
		cfg.Analysis.Workers = 1
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

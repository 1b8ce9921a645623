package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	Port           string   `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LayoutConfig struct {
	NodeWidth    float64 `toml:"node_width"`
	NodeHeight   float64 `toml:"node_height"`
	NodeSpacing  float64 `toml:"node_spacing"`
	RankSpacing  float64 `toml:"rank_spacing"`
	ComponentGap float64 `toml:"component_gap"`
	Direction    string  `toml:"direction"`
}

type DedupeConfig struct {
	DefaultThreshold   float64 `toml:"default_threshold"`
	AutoMergeThreshold float64 `toml:"auto_merge_threshold"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Layout   LayoutConfig   `toml:"layout"`
	Dedupe   DedupeConfig   `toml:"dedupe"`
}

// Default matches the display card the chrome draws and the thresholds the
// curation workflow starts from.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Layout: LayoutConfig{
			NodeWidth:    280,
			NodeHeight:   140,
			NodeSpacing:  60,
			RankSpacing:  120,
			ComponentGap: 160,
			Direction:    "top_down",
		},
		Dedupe: DedupeConfig{
			DefaultThreshold:   0.7,
			AutoMergeThreshold: 0.85,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

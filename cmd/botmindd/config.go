package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roea-ai/botmind/pkg/types"
)

var configCandidates = []string{
	"botmind.yaml",
	"botmind.yml",
	"botmind.toml",
	".botmind/config.yaml",
}

func loadConfig(path string) (*types.Config, error) {
	// Use default config if no path specified
	if path == "" {
		for _, c := range configCandidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	// Return default config if no file found
	if path == "" {
		return types.DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := types.DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *types.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}
	if config.Scheduler.TickIntervalMS <= 0 {
		return fmt.Errorf("scheduler.tick_interval_ms must be positive")
	}
	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.enabled requires auth.jwt_secret")
	}
	for i, b := range config.Bots {
		if b.Name == "" || b.Owner == "" || b.World == "" {
			return fmt.Errorf("bots[%d]: name, owner and world are required", i)
		}
	}
	for i, k := range config.Remote.Kinds {
		config.Remote.Kinds[i] = types.CommandKind(strings.ToUpper(string(k)))
	}
	return nil
}

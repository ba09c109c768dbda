// internal/config/config.go
package config

import (
	"encoding/json"
	"os"
)

// Config is the per-repository configuration stored in the metadata
// directory. All fields are optional; a missing or empty file yields the
// defaults.
type Config struct {
	LogLevel string `json:"log_level,omitempty"` // debug, info, warn, error
}

// Load reads a repository config file. A missing file is not an error.
func Load(path string) (*Config, error) {
	config := &Config{LogLevel: "warn"}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, err
	}
	if config.LogLevel == "" {
		config.LogLevel = "warn"
	}
	return config, nil
}

// Package config reads the JSON configuration of the freeman tools.
package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"

	"go.viam.com/freeman/dataset"
	"go.viam.com/freeman/logging"
)

// DefaultFPS is the frame rate used when a config does not name one.
const DefaultFPS = 30

// Config selects a dataset root, frame rate and split, and tunes the video backend.
type Config struct {
	ConfigFilePath string `json:"-"`

	Root     string       `json:"root"`
	FPS      int          `json:"fps,omitempty"`
	Split    string       `json:"split,omitempty"`
	LogLevel string       `json:"log_level,omitempty"`
	Video    AttributeMap `json:"video,omitempty"`
}

// Read reads a config from the given file, expanding ${VAR} references from the environment.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from. The config is JSON5, so comments
// and trailing commas are allowed.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Config{ConfigFilePath: originalPath}
	if err := json5.Unmarshal(buf, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if cfg.FPS == 0 {
		cfg.FPS = DefaultFPS
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.Root == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "root")
	}
	if c.FPS <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("fps must be positive, got %d", c.FPS))
	}
	if _, err := dataset.ParseSplit(c.Split); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if _, err := c.VideoAttrs(); err != nil {
		return utils.NewConfigValidationError(joinPath(path, "video"), err)
	}
	return nil
}

// DatasetSplit is the parsed split.
func (c *Config) DatasetSplit() dataset.Split {
	split, err := dataset.ParseSplit(c.Split)
	if err != nil {
		return dataset.SplitAll
	}
	return split
}

// Level is the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

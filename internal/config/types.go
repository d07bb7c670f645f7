package config

import (
	"errors"
	"strings"
)

type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
}

type DiscordConfig struct {
	Token string `json:"token"`

	// OwnerUserIDs may run owner-only commands (e.g. forcing a scheduler pass).
	OwnerUserIDs []string `json:"owner_user_ids,omitempty"`
}

type LoggingConfig struct {
	Level   string         `json:"level,omitempty"` // TRACE..ERROR, default INFO
	Console bool           `json:"console"`
	File    FileLogsConfig `json:"file,omitempty"`
}

type FileLogsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SchedulerConfig controls the trigger engine.
//
// TickInterval is a Go duration string (e.g. "10s", "1m"). Omitted/zero means
// the default of 10s.
type SchedulerConfig struct {
	Enabled      bool   `json:"enabled"`
	TickInterval string `json:"tick_interval,omitempty"`
}

// StorageConfig controls scheduled-item persistence.
//
// Driver values:
//   - "file": one JSON document per workspace under Path (default)
//   - "sqlite": single database file at Path (requires the sqlite build tag)
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path"`
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Discord.Token) == "" {
		return errors.New("discord.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationOr(c.Scheduler.TickInterval, 0); err != nil {
		return errors.New("scheduler.tick_interval: " + err.Error())
	}
	return nil
}

package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	MaxTasks      int    `yaml:"max_tasks"`      // 1000 (by default), 0 = unlimited
	TimerCapacity int    `yaml:"timer_capacity"` // 16 (by default)
	TimerLimit    int    `yaml:"timer_limit"`    // 0 = unlimited
	Waiter        string `yaml:"waiter"`         // sleep | poll | epoll
	LogLevel      string `yaml:"log_level"`      // info (by default)
	LogFormat     string `yaml:"log_format"`     // console | json
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	waiter := WaiterPoll
	if runtime.GOOS == "linux" {
		waiter = WaiterEpoll
	}
	return Config{
		MaxTasks:      1000,
		TimerCapacity: 16,
		TimerLimit:    0,
		Waiter:        waiter,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file
// yields the defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg.clamp(), nil
}

// sanity clamps
func (cfg Config) clamp() Config {
	def := DefaultConfig()
	if cfg.MaxTasks < 0 {
		cfg.MaxTasks = def.MaxTasks
	}
	if cfg.TimerCapacity <= 0 {
		cfg.TimerCapacity = def.TimerCapacity
	}
	if cfg.TimerLimit < 0 {
		cfg.TimerLimit = 0
	}
	if cfg.Waiter == "" {
		cfg.Waiter = def.Waiter
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = def.LogFormat
	}
	return cfg
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Streamer StreamerConfig `toml:"streamer"`
	Loop     LoopConfig     `toml:"loop"`
	Scripts  ScriptsConfig  `toml:"scripts"`
	Assets   AssetsConfig   `toml:"assets"`
	World    WorldConfig    `toml:"world"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

type StreamerConfig struct {
	Visibility         float32 `toml:"visibility"`          // multiplier on every object's rendering distance
	FadeOutFactor      float32 `toml:"fade_out_factor"`     // normalised range where a lone object starts fading
	FadeOverlapFactor  float32 `toml:"fade_overlap_factor"` // normalised range where the far counterpart fades in
	CellSize           float32 `toml:"cell_size"`
	ActivationsPerTick int     `toml:"activations_per_tick"`
}

type LoopConfig struct {
	TickRate        time.Duration `toml:"tick_rate"`
	StepSize        time.Duration `toml:"step_size"`
	MaxStepsPerTick int           `toml:"max_steps_per_tick"`
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

type AssetsConfig struct {
	Dir             string `toml:"dir"`
	LoadParallelism int    `toml:"load_parallelism"`
}

type WorldConfig struct {
	Placements  string     `toml:"placements"` // YAML file, used when no database is configured
	PlayerStart [3]float32 `toml:"player_start"`
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the placement store
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	SaveOnExit      bool          `toml:"save_on_exit"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	s := c.Streamer
	if s.Visibility <= 0 {
		return fmt.Errorf("streamer.visibility must be positive, got %v", s.Visibility)
	}
	if s.FadeOutFactor < 0 || s.FadeOutFactor >= 1 {
		return fmt.Errorf("streamer.fade_out_factor must be in [0,1), got %v", s.FadeOutFactor)
	}
	if s.FadeOverlapFactor < 0 || s.FadeOverlapFactor >= 1 {
		return fmt.Errorf("streamer.fade_overlap_factor must be in [0,1), got %v", s.FadeOverlapFactor)
	}
	if s.CellSize <= 0 {
		return fmt.Errorf("streamer.cell_size must be positive, got %v", s.CellSize)
	}
	if c.Loop.TickRate <= 0 || c.Loop.StepSize <= 0 {
		return fmt.Errorf("loop.tick_rate and loop.step_size must be positive")
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Streamer: StreamerConfig{
			Visibility:         1,
			FadeOutFactor:      0.7,
			FadeOverlapFactor:  0.7,
			CellSize:           64,
			ActivationsPerTick: 100,
		},
		Loop: LoopConfig{
			TickRate:        16 * time.Millisecond,
			StepSize:        time.Second / 60,
			MaxStepsPerTick: 5,
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
		Assets: AssetsConfig{
			Dir:             "assets",
			LoadParallelism: 4,
		},
		World: WorldConfig{
			Placements: "data/placements.yaml",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

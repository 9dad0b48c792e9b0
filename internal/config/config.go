// Application configuration loaded from TOML
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Log    LogConfig    `toml:"log"`
	Render RenderConfig `toml:"render"`
	Export ExportConfig `toml:"export"`
	Window WindowConfig `toml:"window"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

type RenderConfig struct {
	// Workers per stage; 0 means GOMAXPROCS.
	Workers  int      `toml:"workers"`
	Debounce Duration `toml:"debounce"`
	Metrics  bool     `toml:"metrics"`
}

type ExportConfig struct {
	Dir     string `toml:"dir"`
	Format  string `toml:"format"`
	Quality int    `toml:"quality"`
}

type WindowConfig struct {
	Width  float32 `toml:"width"`
	Height float32 `toml:"height"`
}

// Duration decodes TOML strings such as "150ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info", Format: "json"},
		Render: RenderConfig{Metrics: true},
		Export: ExportConfig{Dir: "Pictures", Format: "jpeg", Quality: 100},
		Window: WindowConfig{Width: 1200, Height: 800},
	}
}

// Load reads path over the defaults. An empty path yields the defaults; a
// path that cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parsing config %s: unknown keys %v", path, undecoded)
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("render.workers must not be negative, got %d", c.Render.Workers)
	}
	if c.Render.Debounce.Duration < 0 {
		return fmt.Errorf("render.debounce must not be negative, got %v", c.Render.Debounce)
	}
	if c.Export.Quality < 0 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be within [0,100], got %d", c.Export.Quality)
	}
	return nil
}

// NewLogger builds the application logger. Debug mode forces debug level
// and a colored text formatter.
func (c Config) NewLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	if debug || c.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   debug,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

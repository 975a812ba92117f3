package direkte

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/direkte/internal/filemanager"
	"github.com/hupe1980/direkte/internal/resource"
)

// Config is the file form of the index options.
type Config struct {
	Fsync       bool              `yaml:"fsync"`
	Preload     bool              `yaml:"preload"`
	OffsetWidth uint8             `yaml:"offset_width"`
	Log         LogConfig         `yaml:"log"`
	FileManager FileManagerConfig `yaml:"file_manager"`
}

// LogConfig selects the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error or off.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// FileManagerConfig configures the file manager shared by indexes.
type FileManagerConfig struct {
	// MinMapSize is the file size from which files are memory-mapped.
	MinMapSize int64 `yaml:"min_map_size"`
	// DisableMmap reads every file onto the heap.
	DisableMmap bool `yaml:"disable_mmap"`
	// MemoryLimitBytes bounds the heap held by loaded files. Zero is unlimited.
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes"`
	// IOLimitBytesPerSec throttles heap loads. Zero is unlimited.
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
	// MaxWorkers bounds the goroutines decoding bitmaps in ActivateAll.
	MaxWorkers int64 `yaml:"max_workers"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "off",
			Format: "text",
		},
		FileManager: FileManagerConfig{
			MinMapSize: filemanager.DefaultMinMapSize,
			MaxWorkers: 4,
		},
	}
}

// LoadConfig reads configuration from a YAML file. Fields absent from the
// file keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: config %s: %w", ErrBadInput, path, err)
	}
	if err := normalizeConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: config %s: %w", ErrBadInput, path, err)
	}
	return cfg, nil
}

func normalizeConfig(cfg *Config) error {
	if cfg.OffsetWidth != 0 && cfg.OffsetWidth != 4 && cfg.OffsetWidth != 8 {
		return fmt.Errorf("offset_width must be 0, 4 or 8, got %d", cfg.OffsetWidth)
	}
	if cfg.FileManager.MinMapSize < 0 {
		cfg.FileManager.MinMapSize = 0
	}
	if cfg.FileManager.MaxWorkers <= 0 {
		cfg.FileManager.MaxWorkers = 1
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if _, err := cfg.Log.level(); err != nil {
		return err
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}

// level parses Level. "off" and the empty string parse as the zero level.
func (c LogConfig) level() (slog.Level, error) {
	switch c.Level {
	case "", "off":
		return 0, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", c.Level)
	}
}

// Logger returns the logger the configuration describes.
func (c LogConfig) Logger() *Logger {
	level, err := c.level()
	if err != nil || c.Level == "" || c.Level == "off" {
		return NoopLogger()
	}
	if c.Format == "json" {
		return NewJSONLogger(level)
	}
	return NewTextLogger(level)
}

// NewFileManager creates a file manager with its own resource budget.
func NewFileManager(cfg FileManagerConfig, logger *Logger) *FileManager {
	opts := []filemanager.Option{
		filemanager.WithBudget(resource.New(resource.Limits{
			HeapBytes:       cfg.MemoryLimitBytes,
			ReadBytesPerSec: cfg.IOLimitBytesPerSec,
			Decoders:        int(cfg.MaxWorkers),
		})),
		filemanager.WithMinMapSize(cfg.MinMapSize),
	}
	if cfg.DisableMmap {
		opts = append(opts, filemanager.WithoutMmap())
	}
	if logger != nil {
		opts = append(opts, filemanager.WithLogger(logger.Logger))
	}
	return filemanager.New(opts...)
}

// Options returns the options the configuration describes, including a new
// file manager. The caller owns that manager and should Close it when the
// indexes opened with these options are closed.
func (c Config) Options() []Option {
	logger := c.Log.Logger()
	return []Option{
		WithLogger(logger),
		WithFsync(c.Fsync),
		WithPreload(c.Preload),
		WithOffsetWidth(c.OffsetWidth),
		WithFileManager(NewFileManager(c.FileManager, logger)),
	}
}

package inspect

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	FormatHex         = "hex"
	FormatInterleaved = "interleaved"
)

const (
	defaultInput         = "-"
	defaultMaxPacketSize = 1500
	defaultStatsInterval = 10
)

var validLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Inspect InspectConfig `yaml:"inspect" toml:"inspect"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	NoColor bool   `yaml:"no_color" toml:"no_color"`
}

// InspectConfig selects the input and how it is parsed. Input is a file
// path, "-" for stdin. AudioLevelID is the negotiated id of the audio level
// extension, 0 if not in use.
type InspectConfig struct {
	Input            string `yaml:"input" toml:"input"`
	Format           string `yaml:"format" toml:"format"` // FormatHex or FormatInterleaved
	StrictDemux      *bool  `yaml:"strict_demux" toml:"strict_demux"`
	MaxPacketSize    int    `yaml:"max_packet_size" toml:"max_packet_size"`
	StatsIntervalSec int    `yaml:"stats_interval_sec" toml:"stats_interval_sec"`
	AudioLevelID     int    `yaml:"audio_level_id" toml:"audio_level_id"`
}

// LoadConfig loads configuration from a yaml or toml file, picked by the file
// extension.
func LoadConfig(path string) (*Config, error) {
	// 파일 존재 확인
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, filepath.Ext(path))
}

// ParseConfig decodes data in the format named by ext (".yaml", ".yml" or
// ".toml"), applies defaults and validates the result.
func ParseConfig(data []byte, ext string) (*Config, error) {
	var config Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	// 기본값 설정 및 검증
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DefaultConfig is the configuration used when every field is left out.
func DefaultConfig() *Config {
	var config Config
	config.setDefaults()
	return &config
}

func (c *Config) setDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Inspect.Input == "" {
		c.Inspect.Input = defaultInput
	}
	if c.Inspect.Format == "" {
		c.Inspect.Format = FormatHex
	}
	if c.Inspect.StrictDemux == nil {
		strict := true
		c.Inspect.StrictDemux = &strict
	}
	if c.Inspect.MaxPacketSize == 0 {
		c.Inspect.MaxPacketSize = defaultMaxPacketSize
	}
	if c.Inspect.StatsIntervalSec == 0 {
		c.Inspect.StatsIntervalSec = defaultStatsInterval
	}
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLevels)
	}

	if c.Inspect.Format != FormatHex && c.Inspect.Format != FormatInterleaved {
		return fmt.Errorf("invalid format: %s (must be %s or %s)", c.Inspect.Format, FormatHex, FormatInterleaved)
	}

	// RTP 고정 헤더(12바이트)보다 작으면 어떤 패킷도 받을 수 없다
	if c.Inspect.MaxPacketSize < 12 || c.Inspect.MaxPacketSize > 65535 {
		return fmt.Errorf("invalid max_packet_size: %d (must be between 12-65535)", c.Inspect.MaxPacketSize)
	}

	if c.Inspect.StatsIntervalSec < 0 {
		return fmt.Errorf("invalid stats_interval_sec: %d (must be non-negative)", c.Inspect.StatsIntervalSec)
	}

	if c.Inspect.AudioLevelID < 0 || c.Inspect.AudioLevelID > 255 {
		return fmt.Errorf("invalid audio_level_id: %d (must be between 0-255)", c.Inspect.AudioLevelID)
	}

	return nil
}

// GetSlogLevel returns slog.Level from config
func (c *Config) GetSlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Strict reports whether RTP parsing enforces the RFC 7983 first byte range.
func (c *Config) Strict() bool {
	return c.Inspect.StrictDemux == nil || *c.Inspect.StrictDemux
}

// StatsInterval is the period of the stats log.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Inspect.StatsIntervalSec) * time.Second
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/kartoza/kartoza-dualcam/internal/encoder"
	"github.com/kartoza/kartoza-dualcam/internal/models"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".config/kartoza-dualcam"
	// DefaultVideosDir is the default directory for session manifests
	DefaultVideosDir = "Videos/DualCam"
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "config.json"
	// DefaultListenAddr is where the control API listens
	DefaultListenAddr = "127.0.0.1:7787"
)

// Preview protocols
const (
	PreviewAuto  = "auto"
	PreviewKitty = "kitty"
	PreviewASCII = "ascii"
)

// Config holds the application configuration
type Config struct {
	ScratchDir       string        `json:"scratch_dir"`
	OutputDir        string        `json:"output_dir"`
	Format           string        `json:"format"`
	FFmpegPath       string        `json:"ffmpeg_path,omitempty"`
	MaxTotalSeconds  float64       `json:"max_total_seconds"`
	AllowExceeding   bool          `json:"allow_exceeding_max_duration"`
	CountdownSeconds int           `json:"countdown_seconds"`
	DefaultMode      string        `json:"default_mode"`
	DefaultFacing    string        `json:"default_facing"`
	Flash            bool          `json:"flash"`
	FrameRate        int           `json:"frame_rate"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	MultiCam         bool          `json:"multi_cam"`
	Layout           models.Layout `json:"layout"`
	PreviewProtocol  string        `json:"preview_protocol"`
	Notifications    bool          `json:"notifications"`
	Beeps            bool          `json:"beeps"`
	LogLevel         string        `json:"log_level"`
	ListenAddr       string        `json:"listen_addr"`
	SessionCounter   int           `json:"session_counter"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ScratchDir:       GetDefaultScratchDir(),
		OutputDir:        GetDefaultVideosDir(),
		Format:           string(encoder.FormatRaw),
		MaxTotalSeconds:  60,
		CountdownSeconds: 3,
		DefaultMode:      string(models.ModeSingle),
		DefaultFacing:    string(models.FacingBack),
		FrameRate:        30,
		Width:            160,
		Height:           90,
		MultiCam:         true,
		Layout:           models.DefaultLayout(),
		PreviewProtocol:  PreviewAuto,
		Notifications:    true,
		Beeps:            true,
		LogLevel:         "info",
		ListenAddr:       DefaultListenAddr,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigDir
	}
	return filepath.Join(home, DefaultConfigDir)
}

// GetDefaultVideosDir returns the default manifest directory path
func GetDefaultVideosDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultVideosDir
	}
	return filepath.Join(home, DefaultVideosDir)
}

// GetDefaultScratchDir returns the private directory clips are written to
func GetDefaultScratchDir() string {
	return filepath.Join(os.TempDir(), "kartoza-dualcam")
}

// EnsureDirectories creates the necessary directories
func EnsureDirectories(cfg *Config) error {
	dirs := []string{
		GetConfigDir(),
		cfg.ScratchDir,
		cfg.OutputDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the default config file path
func Path() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// Load loads the configuration from the default location
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom loads the configuration from path. Missing keys keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return &cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save saves the configuration to the default location
func Save(cfg *Config) error {
	if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
		return err
	}
	return SaveTo(Path(), cfg)
}

// SaveTo atomically writes the configuration to path
func SaveTo(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0644)
}

// Validate checks the enumerated and numeric settings
func (c *Config) Validate() error {
	if _, err := encoder.ParseFormat(c.Format); err != nil {
		return err
	}
	if _, err := models.ParseMode(c.DefaultMode); err != nil {
		return err
	}
	if _, err := models.ParseFacing(c.DefaultFacing); err != nil {
		return err
	}
	if c.MaxTotalSeconds <= 0 && !c.AllowExceeding {
		return fmt.Errorf("max_total_seconds must be positive, got %v", c.MaxTotalSeconds)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", c.FrameRate)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	switch c.PreviewProtocol {
	case PreviewAuto, PreviewKitty, PreviewASCII, "":
	default:
		return fmt.Errorf("unknown preview protocol %q", c.PreviewProtocol)
	}
	return nil
}

// Topology returns the configured start-up topology
func (c *Config) Topology() models.Topology {
	mode, err := models.ParseMode(c.DefaultMode)
	if err != nil {
		mode = models.ModeSingle
	}
	facing, err := models.ParseFacing(c.DefaultFacing)
	if err != nil {
		facing = models.FacingBack
	}
	return models.Topology{Facing: facing, Mode: mode, Flash: c.Flash}
}

// Budget returns the maximum total recorded duration
func (c *Config) Budget() time.Duration {
	return time.Duration(c.MaxTotalSeconds * float64(time.Second))
}

// Countdown returns the pre-recording countdown; negative disables it
func (c *Config) Countdown() time.Duration {
	if c.CountdownSeconds <= 0 {
		return -1
	}
	return time.Duration(c.CountdownSeconds) * time.Second
}

// EncoderFormat returns the parsed container format
func (c *Config) EncoderFormat() encoder.Format {
	f, err := encoder.ParseFormat(c.Format)
	if err != nil {
		return encoder.FormatRaw
	}
	return f
}

// EncoderConfig returns the encoder settings
func (c *Config) EncoderConfig() encoder.Config {
	ec := encoder.DefaultConfig()
	ec.FrameRate = c.FrameRate
	if c.FFmpegPath != "" {
		ec.FFmpegPath = c.FFmpegPath
	}
	return ec
}

// GetNextSessionNumber returns the next session number and increments the counter
func GetNextSessionNumber() (int, error) {
	cfg, err := Load()
	if err != nil {
		return 1, err
	}

	cfg.SessionCounter++
	if err := Save(cfg); err != nil {
		return cfg.SessionCounter, err
	}

	return cfg.SessionCounter, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
	MinIO        MinIOConfig        `yaml:"minio"`
	Vision       VisionConfig       `yaml:"vision"`
	Matching     MatchingConfig     `yaml:"matching"`
	Liveness     LivenessConfig     `yaml:"liveness"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	Attendance   AttendanceConfig   `yaml:"attendance"`
	Session      SessionConfig      `yaml:"session"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether snapshot storage is configured.
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	ONNXLib            string  `yaml:"onnx_lib"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	DescriptorDim      int     `yaml:"descriptor_dim"`
}

// MatchingConfig holds the distance bands. Distances at or below
// AutoThreshold qualify for confirmation, at or below ConfirmThreshold they
// are only reported as a possible match.
type MatchingConfig struct {
	AutoThreshold    float64 `yaml:"auto_threshold"`
	ConfirmThreshold float64 `yaml:"confirm_threshold"`
}

type LivenessConfig struct {
	ChallengeTimeout time.Duration `yaml:"challenge_timeout"`
	EARThreshold     float64       `yaml:"ear_threshold"`
	LookLeftOffset   float64       `yaml:"look_left_offset"`
}

type ConfirmationConfig struct {
	ConsecutiveRequired int           `yaml:"consecutive_required"`
	PauseAfterMark      time.Duration `yaml:"pause_after_mark"`
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the reference time zone used to derive calendar days.
func (a AttendanceConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type SessionConfig struct {
	ID              string        `yaml:"id"`
	SourceURL       string        `yaml:"source_url"`
	FPS             int           `yaml:"fps"`
	FrameWidth      int           `yaml:"frame_width"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	TemplateRefresh time.Duration `yaml:"template_refresh"`
	Autostart       bool          `yaml:"autostart"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every default applied and no file.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "rollcall-snapshots"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.DescriptorDim == 0 {
		cfg.Vision.DescriptorDim = 512
	}
	if cfg.Matching.AutoThreshold == 0 {
		cfg.Matching.AutoThreshold = 0.50
	}
	if cfg.Matching.ConfirmThreshold == 0 {
		cfg.Matching.ConfirmThreshold = 0.58
	}
	if cfg.Liveness.ChallengeTimeout == 0 {
		cfg.Liveness.ChallengeTimeout = 3500 * time.Millisecond
	}
	if cfg.Liveness.EARThreshold == 0 {
		cfg.Liveness.EARThreshold = 0.18
	}
	if cfg.Liveness.LookLeftOffset == 0 {
		cfg.Liveness.LookLeftOffset = 6
	}
	if cfg.Confirmation.ConsecutiveRequired == 0 {
		cfg.Confirmation.ConsecutiveRequired = 3
	}
	if cfg.Confirmation.PauseAfterMark == 0 {
		cfg.Confirmation.PauseAfterMark = 1400 * time.Millisecond
	}
	if cfg.Attendance.Timezone == "" {
		cfg.Attendance.Timezone = "Local"
	}
	if cfg.Session.ID == "" {
		cfg.Session.ID = "front-desk"
	}
	if cfg.Session.FPS == 0 {
		cfg.Session.FPS = 10
	}
	if cfg.Session.FrameWidth == 0 {
		cfg.Session.FrameWidth = 640
	}
	if cfg.Session.TickInterval == 0 {
		cfg.Session.TickInterval = 100 * time.Millisecond
	}
	if cfg.Session.TemplateRefresh == 0 {
		cfg.Session.TemplateRefresh = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	var errs []error
	if c.Matching.AutoThreshold <= 0 || c.Matching.ConfirmThreshold <= 0 {
		errs = append(errs, errors.New("matching thresholds must be positive"))
	}
	if c.Matching.AutoThreshold > c.Matching.ConfirmThreshold {
		errs = append(errs, fmt.Errorf("matching.auto_threshold %v exceeds matching.confirm_threshold %v",
			c.Matching.AutoThreshold, c.Matching.ConfirmThreshold))
	}
	if c.Confirmation.ConsecutiveRequired < 1 {
		errs = append(errs, errors.New("confirmation.consecutive_required must be at least 1"))
	}
	if c.Liveness.ChallengeTimeout < 0 || c.Confirmation.PauseAfterMark < 0 || c.Session.TickInterval < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.Vision.DescriptorDim < 1 {
		errs = append(errs, errors.New("vision.descriptor_dim must be positive"))
	}
	if _, err := c.Attendance.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROLLCALL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ROLLCALL_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("ROLLCALL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("ROLLCALL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("ROLLCALL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("ROLLCALL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("ROLLCALL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ROLLCALL_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("ROLLCALL_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("ROLLCALL_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("ROLLCALL_ONNX_LIB"); v != "" {
		cfg.Vision.ONNXLib = v
	}
	if v := os.Getenv("ROLLCALL_AUTO_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.AutoThreshold = f
		}
	}
	if v := os.Getenv("ROLLCALL_CONFIRM_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.ConfirmThreshold = f
		}
	}
	if v := os.Getenv("ROLLCALL_TIMEZONE"); v != "" {
		cfg.Attendance.Timezone = v
	}
	if v := os.Getenv("ROLLCALL_SESSION_ID"); v != "" {
		cfg.Session.ID = v
	}
	if v := os.Getenv("ROLLCALL_SOURCE_URL"); v != "" {
		cfg.Session.SourceURL = v
	}
	if v := os.Getenv("ROLLCALL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

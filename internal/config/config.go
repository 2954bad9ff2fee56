package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Camera   CameraConfig   `yaml:"camera"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
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

type CameraConfig struct {
	URL   string `yaml:"url"`
	Label string `yaml:"label"`
	FPS   int    `yaml:"fps"`
	Width int    `yaml:"width"`
}

type EngineConfig struct {
	TickInterval         time.Duration `yaml:"tick_interval"`
	HistoryCapacity      int           `yaml:"history_capacity"`
	DetectionThreshold   float64       `yaml:"detection_threshold"`   // raw detector score cutoff [0,1]
	RecognitionThreshold float64       `yaml:"recognition_threshold"` // embedding similarity cutoff [0,1]
	ConfidenceThreshold  int           `yaml:"confidence_threshold"`  // integer percentage for known/unknown policy
	ModelsDir            string        `yaml:"models_dir"`
	AutoStart            bool          `yaml:"auto_start"`
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

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 5
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Label == "" {
		cfg.Camera.Label = "Main Entrance"
	}
	if cfg.Engine.TickInterval == 0 {
		cfg.Engine.TickInterval = 1500 * time.Millisecond
	}
	if cfg.Engine.HistoryCapacity == 0 {
		cfg.Engine.HistoryCapacity = 100
	}
	if cfg.Engine.DetectionThreshold == 0 {
		cfg.Engine.DetectionThreshold = 0.5
	}
	if cfg.Engine.RecognitionThreshold == 0 {
		cfg.Engine.RecognitionThreshold = 0.4
	}
	if cfg.Engine.ConfidenceThreshold == 0 {
		cfg.Engine.ConfidenceThreshold = 60
	}
	if cfg.Engine.ModelsDir == "" {
		cfg.Engine.ModelsDir = "models"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACETRACK_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FACETRACK_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("FACETRACK_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FACETRACK_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FACETRACK_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FACETRACK_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FACETRACK_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FACETRACK_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FACETRACK_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FACETRACK_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FACETRACK_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FACETRACK_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FACETRACK_CAMERA_URL"); v != "" {
		cfg.Camera.URL = v
	}
	if v := os.Getenv("FACETRACK_MODELS_DIR"); v != "" {
		cfg.Engine.ModelsDir = v
	}
	if v := os.Getenv("FACETRACK_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.TickInterval = d
		}
	}
}

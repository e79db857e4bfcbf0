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
	Face     FaceConfig     `yaml:"face"`
	Upload   UploadConfig   `yaml:"upload"`
	Worker   WorkerConfig   `yaml:"worker"`
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

type FaceConfig struct {
	// EncoderCommand is the external embedding command. It is invoked with an
	// image path and a model name and prints a JSON result on stdout.
	EncoderCommand string        `yaml:"encoder_command"`
	Model          string        `yaml:"model"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	EncodeTimeout  time.Duration `yaml:"encode_timeout"`
	MatchThreshold float64       `yaml:"match_threshold"`
	SearchLimit    int           `yaml:"search_limit"`
	CandidateLimit int           `yaml:"candidate_limit"`
}

type UploadConfig struct {
	TempDir        string `yaml:"temp_dir"`
	MaxFileSize    int64  `yaml:"max_file_size"`
	MaxDimension   int    `yaml:"max_dimension"`
	MaxDensity     int    `yaml:"max_density"`
	OptimizeWidth  int    `yaml:"optimize_width"`
	OptimizeHeight int    `yaml:"optimize_height"`
	JPEGQuality    int    `yaml:"jpeg_quality"`
	SelfieMaxSize  int    `yaml:"selfie_max_size"`
	SelfieQuality  int    `yaml:"selfie_quality"`
}

type WorkerConfig struct {
	EncodeConcurrency  int           `yaml:"encode_concurrency"`
	CleanupConcurrency int           `yaml:"cleanup_concurrency"`
	PendingTTL         time.Duration `yaml:"pending_ttl"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	MetricsPort        int           `yaml:"metrics_port"`
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
	if cfg.Face.EncoderCommand == "" {
		cfg.Face.EncoderCommand = "deepface-encode"
	}
	if cfg.Face.Model == "" {
		cfg.Face.Model = "Facenet"
	}
	if cfg.Face.ProbeTimeout == 0 {
		cfg.Face.ProbeTimeout = 3 * time.Second
	}
	if cfg.Face.EncodeTimeout == 0 {
		cfg.Face.EncodeTimeout = 5 * time.Minute
	}
	if cfg.Face.MatchThreshold == 0 {
		cfg.Face.MatchThreshold = 0.7
	}
	if cfg.Face.SearchLimit == 0 {
		cfg.Face.SearchLimit = 10
	}
	if cfg.Face.CandidateLimit == 0 {
		cfg.Face.CandidateLimit = 50
	}
	if cfg.Upload.TempDir == "" {
		cfg.Upload.TempDir = os.TempDir()
	}
	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Upload.MaxDimension == 0 {
		cfg.Upload.MaxDimension = 8000
	}
	if cfg.Upload.MaxDensity == 0 {
		cfg.Upload.MaxDensity = 600
	}
	if cfg.Upload.OptimizeWidth == 0 {
		cfg.Upload.OptimizeWidth = 1920
	}
	if cfg.Upload.OptimizeHeight == 0 {
		cfg.Upload.OptimizeHeight = 1080
	}
	if cfg.Upload.JPEGQuality == 0 {
		cfg.Upload.JPEGQuality = 85
	}
	if cfg.Upload.SelfieMaxSize == 0 {
		cfg.Upload.SelfieMaxSize = 800
	}
	if cfg.Upload.SelfieQuality == 0 {
		cfg.Upload.SelfieQuality = 90
	}
	if cfg.Worker.EncodeConcurrency == 0 {
		cfg.Worker.EncodeConcurrency = 2
	}
	if cfg.Worker.CleanupConcurrency == 0 {
		cfg.Worker.CleanupConcurrency = 1
	}
	if cfg.Worker.PendingTTL == 0 {
		cfg.Worker.PendingTTL = 24 * time.Hour
	}
	if cfg.Worker.CleanupInterval == 0 {
		cfg.Worker.CleanupInterval = time.Hour
	}
	if cfg.Worker.MetricsPort == 0 {
		cfg.Worker.MetricsPort = 8082
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PE_ENCODER_COMMAND"); v != "" {
		cfg.Face.EncoderCommand = v
	}
	if v := os.Getenv("PE_FACE_MODEL"); v != "" {
		cfg.Face.Model = v
	}
	if v := os.Getenv("PE_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Face.MatchThreshold = f
		}
	}
	if v := os.Getenv("PE_ENCODE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.EncodeConcurrency = n
		}
	}
}

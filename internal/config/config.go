package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	Password string
	LogLevel string

	DetectorBackend     string // dnn, onnx or remote
	ModelPath           string
	ConfigPath          string // network description for the dnn backend
	LabelsPath          string // one class name per line; empty uses COCO
	OnnxLibraryPath     string
	OnnxPoolSize        int
	DetectorURL         string
	DetectorTimeout     time.Duration
	ConfidenceThreshold float64
	DangerousClasses    []string

	CaptureCooldown  time.Duration
	CaptureDirectory string
	JPEGQuality      int
	DatabasePath     string
	LogDirectory     string

	CamerasPort int               // UDP camera ingest, 0 disables it
	CameraNames map[string]string // camera IP -> display name
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first without overriding existing variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                getEnvAsInt("PORT", 8000),
		Password:            getEnv("PASSWORD", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DetectorBackend:     strings.ToLower(getEnv("DETECTOR_BACKEND", "onnx")),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "best.onnx")),
		ConfigPath:          getEnv("CONFIG_PATH", ""),
		LabelsPath:          getEnv("LABELS_PATH", ""),
		OnnxLibraryPath:     getEnv("ONNX_LIBRARY_PATH", ""),
		OnnxPoolSize:        getEnvAsInt("ONNX_POOL_SIZE", 2),
		DetectorURL:         getEnv("DETECTOR_URL", "http://localhost:8081/detect"),
		DetectorTimeout:     getEnvAsSeconds("DETECTOR_TIMEOUT", 10*time.Second),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		DangerousClasses:    getEnvAsList("DANGEROUS_CLASSES", []string{"knife", "scissors"}),
		CaptureCooldown:     getEnvAsSeconds("CAPTURE_COOLDOWN", 3*time.Second),
		CaptureDirectory:    getEnv("CAPTURE_DIR", filepath.Join(".", "captures")),
		JPEGQuality:         getEnvAsInt("JPEG_QUALITY", 90),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "captures.db")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		CamerasPort:         getEnvAsInt("CAMERAS_PORT", 0),
		CameraNames:         getEnvAsMap("CAMERA_NAMES"),
	}
}

// Validate checks values that would make the pipeline misbehave at runtime.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence threshold must be in (0,1), got %v", c.ConfidenceThreshold)
	}
	if c.CaptureCooldown < 0 {
		return fmt.Errorf("capture cooldown must not be negative, got %v", c.CaptureCooldown)
	}
	if len(c.DangerousClasses) == 0 {
		return fmt.Errorf("at least one dangerous class is required")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be in [1,100], got %d", c.JPEGQuality)
	}
	switch c.DetectorBackend {
	case "dnn", "onnx", "remote":
	default:
		return fmt.Errorf("unknown detector backend %q", c.DetectorBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsSeconds accepts either a bare number of seconds ("3", "0.5") or a Go duration ("1500ms").
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsMap parses "k1=v1,k2=v2". Malformed pairs are ignored.
func getEnvAsMap(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range getEnvAsList(key, nil) {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the console configuration read from the environment.
type Settings struct {
	Port           string
	APIBaseURL     string
	RequestTimeout time.Duration
	PlaybackTick   time.Duration
	WaveformBars   int
	MaxUploadBytes int64
	LogLevel       string
	LogFormat      string
}

// Load reads .env files into the process environment. A missing file is
// reported but callers can ignore it and rely on system env or defaults.
// With no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds Settings from the environment, applying defaults.
func FromEnv() Settings {
	return Settings{
		Port:           GetEnv("PORT", "8080"),
		APIBaseURL:     GetEnv("API_BASE_URL", "http://127.0.0.1:8000/api/audio"),
		RequestTimeout: GetEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		PlaybackTick:   GetEnvDuration("PLAYBACK_TICK", 100*time.Millisecond),
		WaveformBars:   GetEnvInt("WAVEFORM_BARS", 200),
		MaxUploadBytes: int64(GetEnvInt("MAX_UPLOAD_MB", 100)) << 20,
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "json"),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses the variable with time.ParseDuration ("90s", "5m"),
// returning fallback when it is unset, invalid or not positive.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

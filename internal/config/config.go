// Package config loads client settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds everything main needs to assemble a session.
type Config struct {
	ServerURL    string
	UploadURL    string
	Username     string
	IdentityFile string
	IdentityDSN  string
	DefaultRoom  string

	TypingQuiet time.Duration
	BlurGrace   time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	ControlAddr  string
	ControlToken string
	DebugRoutes  bool
	LogLevel     string
	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string
	Environment  string
}

// Load reads the configuration, applying defaults for anything unset.
func Load() Config {
	return Config{
		ServerURL:        getEnv("CHAT_SERVER_URL", "ws://localhost:5000/ws"),
		UploadURL:        getEnv("CHAT_UPLOAD_URL", "http://localhost:5000/api/upload"),
		Username:         getEnv("CHAT_USERNAME", ""),
		IdentityFile:     getEnv("CHAT_IDENTITY_FILE", defaultIdentityFile()),
		IdentityDSN:      getEnv("CHAT_IDENTITY_DSN", ""),
		DefaultRoom:      getEnv("CHAT_DEFAULT_ROOM", "general"),
		TypingQuiet:      getMillis("TYPING_QUIET_MS", 1000),
		BlurGrace:        getMillis("BLUR_GRACE_MS", 100),
		ReconnectInitial: getMillis("RECONNECT_INITIAL_MS", 500),
		ReconnectMax:     getMillis("RECONNECT_MAX_MS", 10000),
		ControlAddr:      getEnv("CONTROL_ADDR", "127.0.0.1:8090"),
		ControlToken:     getEnv("CONTROL_TOKEN", ""),
		DebugRoutes:      getEnv("DEBUG_ROUTES", "") == "true",
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "chat_client.audit"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Environment:      getEnv("APP_ENV", "local"),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getMillis(key string, fallback int) time.Duration {
	ms, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || ms <= 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "identity.json"
	}
	return filepath.Join(home, ".chat-client", "identity.json")
}

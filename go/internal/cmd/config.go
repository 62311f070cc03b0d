package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brainbuzz/brainbuzz/go/internal/quiz"
)

// Config holds runtime settings, read from the environment.
type Config struct {
	Port                  string
	QuizEngineURL         string
	ChatRelayURL          string
	ChatRelayToken        string
	NATSURL               string
	CatalogPath           string
	TickInterval          time.Duration
	SingleSessionPerScope bool
	LogLevel              string
}

func loadConfig() Config {
	return Config{
		Port:                  getEnv("PORT", "8080"),
		QuizEngineURL:         getEnv("QUIZ_ENGINE_URL", "http://localhost:3000"),
		ChatRelayURL:          getEnv("CHAT_RELAY_URL", "http://localhost:4000"),
		ChatRelayToken:        getEnv("CHAT_RELAY_TOKEN", ""),
		NATSURL:               getEnv("NATS_URL", ""),
		CatalogPath:           getEnv("QUIZ_CATALOG", "config/quiz_catalog.yaml"),
		TickInterval:          time.Duration(getEnvAsInt("COUNTDOWN_INTERVAL_SEC", 1)) * time.Second,
		SingleSessionPerScope: getEnvAsBool("SINGLE_SESSION_PER_SCOPE", true),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}
}

// CatalogConfig is the YAML shape of the quiz catalog file.
type CatalogConfig struct {
	Quiz struct {
		Categories []quiz.CatalogEntry `yaml:"categories"`
	} `yaml:"quiz"`
}

func loadCatalog(path string) ([]quiz.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return config.Quiz.Categories, nil
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

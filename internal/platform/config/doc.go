// Package config provides environment-based configuration and the subscriber list.
//
// Loads from .env file (godotenv), maps to Config struct via go-simpler/env struct tags,
// and reads the YAML subscriber list. Validates intervals, limits and per-service credentials.
package config

package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	GeminiAPIKey          string
	TranslationModel      string
	SourceLang            string
	TargetLang            string
	WorkerCount           int
	BatchSize             int
	MaxConcurrentAPICalls int
	CachePath             string
	StrictMarkers         bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		TranslationModel:      getEnv("TRANSLATION_MODEL", "gemini-2.5-flash"),
		SourceLang:            getEnv("SOURCE_LANG", "Japanese"),
		TargetLang:            getEnv("TARGET_LANG", "English"),
		WorkerCount:           getEnvInt("WORKER_COUNT", 8),
		BatchSize:             getEnvInt("BATCH_SIZE", 10),
		MaxConcurrentAPICalls: getEnvInt("MAX_CONCURRENT_API_CALLS", 5),
		CachePath:             getEnv("CACHE_PATH", "translation_cache.db"),
		StrictMarkers:         getEnvBool("STRICT_MARKERS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string
	LocalStoreDir   string
	RedisAddr       string

	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	EngineURL     string
	EngineTimeout time.Duration

	MaxImageCount    int
	MaxBytesPerImage int64
	AllowedMimeTypes []string

	PollInterval      time.Duration
	PollBackoffFactor float64
	PollRetryCeiling  int

	PageSize int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		DatabaseURL:     dbURL,
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTTTL:     getEnvDuration("JWT_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		EngineURL:     getEnv("ENGINE_URL", "http://localhost:50080"),
		EngineTimeout: getEnvDuration("ENGINE_TIMEOUT", 30*time.Second),

		MaxImageCount:    getEnvInt("MAX_IMAGE_COUNT", 6),
		MaxBytesPerImage: getEnvInt64("MAX_IMAGE_BYTES", 10<<20),
		AllowedMimeTypes: splitAndTrim(getEnv("ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp")),

		PollInterval:      time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		PollBackoffFactor: getEnvFloat("POLL_BACKOFF_FACTOR", 2.0),
		PollRetryCeiling:  getEnvInt("POLL_RETRY_CEILING", 5),

		PageSize: getEnvInt("PAGE_SIZE", 20),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: load %s: %v", path, err)
		}
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s invalid int %q, using default", key, raw)
		return def
	}
	return val
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config: %s invalid int %q, using default", key, raw)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("config: %s invalid float %q, using default", key, raw)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config: %s invalid duration %q, using default", key, raw)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

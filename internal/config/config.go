package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	// StoreDriver selects the document backend: redis, mongo or memory.
	StoreDriver   string
	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTIssuer string

	IdentityBaseURL   string
	RoleLookupTimeout time.Duration
	GateTimeout       time.Duration

	NotifyEnabled bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: skipping .env: %v", err)
	}
	return Config{
		HTTPAddr:          getenv("HTTP_ADDR", ":8084"),
		StoreDriver:       getenv("STORE_DRIVER", "redis"),
		RedisAddr:         getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		MongoURI:          getenv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDatabase:     getenv("MONGO_DATABASE", "compunic"),
		JWTSecret:         getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:         getenv("JWT_ISSUER", "compunic-identity"),
		IdentityBaseURL:   getenv("IDENTITY_BASE_URL", "http://127.0.0.1:8081"),
		RoleLookupTimeout: getenvDuration("ROLE_LOOKUP_TIMEOUT", 5*time.Second),
		GateTimeout:       getenvDuration("GATE_TIMEOUT", 10*time.Second),
		NotifyEnabled:     getenvBool("NOTIFY_ENABLED", false),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

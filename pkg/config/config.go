package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                    string
	Env                     string
	MetricsPort             string
	PostgresUrl             string
	MongoURI                string
	MongoDatabase           string
	FirebaseCredentialsPath string
	FirebaseStorageBucket   string
	JWTSecret               string
	RedisAddr               string
	RedisPassword           string
	StripeSecretKey         string
	StripeWebhookSecret     string
	CheckoutSuccessURL      string
	CheckoutCancelURL       string
	LogLevel                string
	LogFile                 string

	// SaveCooldown is the pause between two queued save/unsave calls for one post card.
	SaveCooldown time.Duration
	// StatsSessionTTL is how long an idle post card session is kept in memory.
	StatsSessionTTL time.Duration
}

// Load reads configuration from the environment, loading a .env file first when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		PostgresUrl:             getEnv("POSTGRES_URL", "postgres://postgres@localhost:5432/postacad?sslmode=disable"),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "postacad"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		StripeSecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:      getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/purchase/success"),
		CheckoutCancelURL:       getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/purchase/cancel"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFile:                 getEnv("LOG_FILE", "server.log"),
		SaveCooldown:            getDuration("SAVE_COOLDOWN", time.Second),
		StatsSessionTTL:         getDuration("STATS_SESSION_TTL", 10*time.Minute),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

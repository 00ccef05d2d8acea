package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort    int
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int

	JWTSecret string
	JWTExpiry time.Duration

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	// S3PublicBaseURL is the prefix attachment URLs are built from. Deletion
	// extracts the object key back out of this prefix, so it must match the
	// address the bucket is actually served on.
	S3PublicBaseURL string
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	expiry, err := time.ParseDuration(envString("JWT_EXPIRES_IN", "1h"))
	if err != nil {
		expiry = time.Hour
	}

	return Config{
		AppPort:    envInt("APP_PORT", 3004),
		DBHost:     envString("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  envString("REDIS_HOST", "localhost"),
		RedisPort:  envInt("REDIS_PORT", 6379),

		JWTSecret: envString("JWT_ACCESS_SECRET", "secret"),
		JWTExpiry: expiry,

		S3Endpoint:      envString("S3_ENDPOINT", "http://127.0.0.1:9000"),
		S3Region:        envString("S3_REGION", "us-east-1"),
		S3Bucket:        envString("S3_BUCKET", "taskhub-media"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3PublicBaseURL: envString("S3_PUBLIC_BASE_URL", envString("S3_ENDPOINT", "http://127.0.0.1:9000")),
	}
}

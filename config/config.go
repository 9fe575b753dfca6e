package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Port string
	Env  string

	MongoURI     string
	DatabaseName string

	JWTSecret     string
	JWTExpiration time.Duration
	JWTIssuer     string

	B2ApplicationKeyID string
	B2ApplicationKey   string
	B2BucketName       string

	MaxFileSize int64

	// RestoreWindow is how long soft-deleted content stays recoverable
	// before the deletion job destroys it.
	RestoreWindow        time.Duration
	AssetDeleteBatchSize int
	WorkerPollInterval   time.Duration
	WorkerLease          time.Duration
	JobMaxAttempts       int
	JobBackoffBase       time.Duration

	AllowedOrigins []string
}

var AppConfig *Config

func LoadConfig() {
	AppConfig = &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		MongoURI:     getMongoURI(),
		DatabaseName: getEnv("DATABASE_NAME", "treevault"),

		JWTSecret:     getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
		JWTExpiration: parseDuration(getEnv("JWT_EXPIRATION", "24h")),
		JWTIssuer:     getEnv("JWT_ISSUER", "treevault"),

		B2ApplicationKeyID: getB2KeyID(),
		B2ApplicationKey:   getB2AppKey(),
		B2BucketName:       getB2BucketName(),

		MaxFileSize: parseInt64(getEnv("MAX_FILE_SIZE", "104857600")),

		RestoreWindow:        parseDuration(getEnv("RESTORE_WINDOW", "672h")),
		AssetDeleteBatchSize: int(parseInt64(getEnv("ASSET_DELETE_BATCH_SIZE", "100"))),
		WorkerPollInterval:   parseDuration(getEnv("WORKER_POLL_INTERVAL", "5s")),
		WorkerLease:          parseDuration(getEnv("WORKER_LEASE", "5m")),
		JobMaxAttempts:       int(parseInt64(getEnv("JOB_MAX_ATTEMPTS", "5"))),
		JobBackoffBase:       parseDuration(getEnv("JOB_BACKOFF_BASE", "1s")),

		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	logConfig()
	validateConfig()
}

func getMongoURI() string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	return "mongodb://localhost:27017"
}

func getB2KeyID() string {
	possibleKeys := []string{"B2_APPLICATION_KEY_ID", "B2_KEY_ID", "BACKBLAZE_KEY_ID"}
	for _, key := range possibleKeys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getB2AppKey() string {
	possibleKeys := []string{"B2_APPLICATION_KEY", "B2_APP_KEY", "BACKBLAZE_APP_KEY"}
	for _, key := range possibleKeys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func getB2BucketName() string {
	possibleKeys := []string{"B2_BUCKET_NAME", "B2_BUCKET", "BACKBLAZE_BUCKET"}
	for _, key := range possibleKeys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

func logConfig() {
	log.Info().
		Str("port", AppConfig.Port).
		Str("env", AppConfig.Env).
		Str("database", AppConfig.DatabaseName).
		Str("mongo_uri", maskConnectionString(AppConfig.MongoURI)).
		Str("jwt_secret", maskSecret(AppConfig.JWTSecret)).
		Str("b2_key_id", maskSecret(AppConfig.B2ApplicationKeyID)).
		Str("b2_bucket", AppConfig.B2BucketName).
		Int64("max_file_size", AppConfig.MaxFileSize).
		Dur("restore_window", AppConfig.RestoreWindow).
		Int("asset_delete_batch_size", AppConfig.AssetDeleteBatchSize).
		Dur("worker_poll_interval", AppConfig.WorkerPollInterval).
		Int("job_max_attempts", AppConfig.JobMaxAttempts).
		Strs("allowed_origins", AppConfig.AllowedOrigins).
		Msg("configuration loaded")
}

func maskSecret(secret string) string {
	if secret == "" {
		return "[NOT SET]"
	}
	if len(secret) <= 8 {
		return "[HIDDEN]"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

func maskConnectionString(uri string) string {
	if uri == "" {
		return "[NOT SET]"
	}
	if strings.Contains(uri, "@") {
		parts := strings.Split(uri, "@")
		if len(parts) >= 2 {
			return "[CREDENTIALS_HIDDEN]@" + parts[len(parts)-1]
		}
	}
	return uri
}

func validateConfig() {
	var missingVars []string

	required := map[string]string{
		"MONGO_URI":             AppConfig.MongoURI,
		"JWT_SECRET":            AppConfig.JWTSecret,
		"B2_APPLICATION_KEY_ID": AppConfig.B2ApplicationKeyID,
		"B2_APPLICATION_KEY":    AppConfig.B2ApplicationKey,
		"B2_BUCKET_NAME":        AppConfig.B2BucketName,
	}

	for key, value := range required {
		if value == "" {
			missingVars = append(missingVars, key)
		}
	}

	if len(missingVars) > 0 {
		log.Fatal().Strs("missing", missingVars).Msg("required environment variables are not set")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatal().Str("value", s).Msg("failed to parse int64")
	}
	return i
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatal().Str("value", s).Msg("failed to parse duration")
	}
	return d
}

func CreateContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	var result []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

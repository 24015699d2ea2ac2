package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port          string
	Env           string
	DatabaseURL   string
	SQLitePath    string
	MaxOpenConns  int
	LogSQL        bool
	JWTSecret     []byte
	JWTTTL        time.Duration
	UploadDir     string
	PublicBaseURL string
	RabbitMQURL   string
	QueueRetries  int
	QueueDelay    time.Duration
	QueuePrefetch int
	CORSOrigins   []string
	AdminEmails   []string
	// CalorieLocation decides where calendar days start for the calorie ledger and
	// the daily/weekly/monthly stats windows.
	CalorieLocation     *time.Location
	RestaurantTypesFile string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SQLitePath:          getEnv("SQLITE_PATH", "food_delivery.db"),
		MaxOpenConns:        getInt("DB_MAX_OPEN_CONNS", 10),
		LogSQL:              getBool("DB_LOG_SQL", false),
		JWTSecret:           []byte(getEnv("JWT_SECRET", "food_delivery_super_secret_2024")),
		JWTTTL:              getDuration("JWT_TTL", 24*time.Hour),
		UploadDir:           getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		QueueRetries:        getInt("RABBITMQ_MAX_RETRIES", 3),
		QueueDelay:          getDuration("RABBITMQ_RETRY_DELAY", 2*time.Second),
		QueuePrefetch:       getInt("RABBITMQ_PREFETCH_COUNT", 10),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		AdminEmails:         splitList(getEnv("ADMIN_EMAILS", "")),
		RestaurantTypesFile: getEnv("RESTAURANT_TYPES_FILE", ""),
	}

	tz := getEnv("CALORIE_TIMEZONE", "")
	if tz == "" {
		cfg.CalorieLocation = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CALORIE_TIMEZONE %q: %w", tz, err)
		}
		cfg.CalorieLocation = loc
	}

	return cfg, nil
}

// NewLogger builds the application logger for the configured environment.
func NewLogger(env string) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultDescription = "INTEL CORE 2 DUO 2.90 GHZ, 4GB RAM, 360GB HDD, LED MONITOR, KB & MOUSE"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	// BaseURL prefixes the canonical deep link of every system record.
	BaseURL            string
	DefaultDescription string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Storage StorageConfig
	Redis   RedisConfig
	QR      QRConfig
}

type StorageConfig struct {
	Driver         string
	SupabaseURL    string
	ServiceRoleKey string
	Bucket         string
	UploadAttempts int
	Timeout        time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type QRConfig struct {
	Foreground     string
	Background     string
	Workers        int
	RepairEnabled  bool
	RepairInterval time.Duration
	RepairBatch    int
}

const (
	StorageDriverSupabase = "supabase"
	StorageDriverMemory   = "memory"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	supabaseURL := strings.TrimRight(strings.TrimSpace(getenv("SUPABASE_URL", "")), "/")
	driver := StorageDriverMemory
	if supabaseURL != "" {
		driver = StorageDriverSupabase
	}

	cfg := Config{
		AppName:            getenv("APP_SERVICE", "labinventory"),
		AppVersion:         getenv("APP_VERSION", "0.1.0"),
		Environment:        getenv("ENVIRONMENT", "development"),
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		NodeID:             int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		BaseURL:            strings.TrimRight(strings.TrimSpace(getenv("API_URL", "http://localhost:8080")), "/"),
		DefaultDescription: getenv("DEFAULT_DESCRIPTION", DefaultDescription),
		OTLPEndpoint:       getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "postgres"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:       getenv("DATABASE_SQLITE_PATH", "labinventory.db"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		Storage: StorageConfig{
			Driver:         strings.ToLower(getenv("STORAGE_DRIVER", driver)),
			SupabaseURL:    supabaseURL,
			ServiceRoleKey: strings.TrimSpace(getenv("SUPABASE_SERVICE_ROLE_KEY", "")),
			Bucket:         getenv("STORAGE_BUCKET", "qr-codes"),
			UploadAttempts: getenvInt("STORAGE_UPLOAD_ATTEMPTS", 3),
			Timeout:        getenvSeconds("STORAGE_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			LockTTL:  getenvSeconds("ALLOCATION_LOCK_TTL", 30*time.Second),
		},
		QR: QRConfig{
			Foreground:     getenv("QR_FOREGROUND", "#000000"),
			Background:     getenv("QR_BACKGROUND", "#FFFFFF"),
			Workers:        getenvInt("QR_WORKERS", 4),
			RepairEnabled:  getenvBool("QR_REPAIR_ENABLED", true),
			RepairInterval: getenvSeconds("QR_REPAIR_INTERVAL", 5*time.Minute),
			RepairBatch:    getenvInt("QR_REPAIR_BATCH_SIZE", 50),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return def
	}
	return time.Duration(parsed) * time.Second
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

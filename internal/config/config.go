package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	AppEnv      string
	LogLevel    string
	ServerPort  int

	// CatalogSource is one of "json", "db" or "es".
	CatalogSource string
	CatalogJSON   string
	CatalogWatch  bool
	CatalogTTL    time.Duration

	DatabaseDriver string
	DatabaseURL    string

	// CartStorage is one of "db", "file" or "memory".
	CartStorage      string
	CartDir          string
	CartIdleTTL      time.Duration
	PlaceholderImage string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	KafkaBrokers []string

	JWTSecret         []byte
	AdminUsername     string
	AdminPasswordHash string

	StoreName      string
	WhatsAppNumber string
	Currency       string

	MediaDir     string
	MediaBaseURL string
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("notice: .env file not loaded: %v, using system environment", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "nolmart"),
		AppEnv:      EnvDefault("APP_ENV", "development"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),

		CatalogSource: strings.ToLower(EnvDefault("CATALOG_SOURCE", "json")),
		CatalogJSON:   EnvDefault("CATALOG_JSON", "public/products.json"),
		CatalogWatch:  EnvBoolDefault("CATALOG_WATCH", false),
		CatalogTTL:    EnvDurationDefault("CATALOG_TTL", 0),

		DatabaseDriver: strings.ToLower(EnvDefault("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:    EnvDefault("DATABASE_URL", "nolmart.db"),

		CartStorage:      strings.ToLower(EnvDefault("CART_STORAGE", "db")),
		CartDir:          EnvDefault("CART_DIR", "data/carts"),
		CartIdleTTL:      EnvDurationDefault("CART_IDLE_TTL", 30*time.Minute),
		PlaceholderImage: EnvDefault("PLACEHOLDER_IMAGE", "img/placeholder-image.png"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "products"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		JWTSecret:         []byte(os.Getenv("JWT_SECRET")),
		AdminUsername:     EnvDefault("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		StoreName:      EnvDefault("STORE_NAME", "NolMart"),
		WhatsAppNumber: os.Getenv("WHATSAPP_NUMBER"),
		Currency:       EnvDefault("CURRENCY", "Tzs"),

		MediaDir:     EnvDefault("MEDIA_DIR", "public/media"),
		MediaBaseURL: EnvDefault("MEDIA_BASE_URL", "/media"),
	}
}

// AdminEnabled reports whether the admin surface can be served: it needs a writable product store
// and credentials to sign tokens with.
func (c Config) AdminEnabled() bool {
	return c.CatalogSource == "db" && len(c.JWTSecret) > 0 && c.AdminPasswordHash != ""
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

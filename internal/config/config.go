package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// DefaultScopes are the permissions requested from the ads platform.
var DefaultScopes = []string{"ads_read", "ads_management", "leads_retrieval", "business_management"}

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	ServiceName string

	MetaAppID       string
	MetaAppSecret   string
	MetaRedirectURI string
	MetaScopes      []string
	MetaDialogURL   string

	GraphBaseURL    string
	GraphAPIVersion string
	UpstreamTimeout time.Duration
	LeadsMaxForms   int
	LeadsPerForm    int

	StoreDriver    string
	DatabaseURL    string
	MigrateOnStart bool
	MongoURI       string
	MongoDatabase  string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CredentialCacheTTL time.Duration

	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults
// and validates it for serving.
func Load() (Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read loads configuration without validation. Tools that only touch the
// store, such as migrations, use it directly.
func Read() Config {
	_ = godotenv.Load()

	graphVersion := getEnv("GRAPH_API_VERSION", "v19.0")
	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "3000"),
		ServiceName:          getEnv("SERVICE_NAME", "adsbridge"),
		MetaAppID:            strings.TrimSpace(os.Getenv("META_APP_ID")),
		MetaAppSecret:        strings.TrimSpace(os.Getenv("META_APP_SECRET")),
		MetaRedirectURI:      strings.TrimSpace(os.Getenv("META_REDIRECT_URI")),
		MetaScopes:           getList("META_OAUTH_SCOPES", DefaultScopes),
		MetaDialogURL:        getEnv("META_DIALOG_URL", "https://www.facebook.com/"+graphVersion+"/dialog/oauth"),
		GraphBaseURL:         strings.TrimRight(getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com"), "/"),
		GraphAPIVersion:      graphVersion,
		UpstreamTimeout:      getDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		LeadsMaxForms:        getInt("LEADS_MAX_FORMS", 5),
		LeadsPerForm:         getInt("LEADS_PER_FORM", 10),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MigrateOnStart:       getBool("MIGRATE_ON_START", true),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "adsbridge"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		CredentialCacheTTL:   getDuration("CREDENTIAL_CACHE_TTL", 5*time.Minute),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 0),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Content-Type", "X-User-ID"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}
	return cfg
}

// Validate checks required settings for the selected drivers.
func (c Config) Validate() error {
	if c.MetaAppID == "" {
		return fmt.Errorf("META_APP_ID is required")
	}
	if c.MetaAppSecret == "" {
		return fmt.Errorf("META_APP_SECRET is required")
	}
	if c.MetaRedirectURI == "" {
		return fmt.Errorf("META_REDIRECT_URI is required")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory")
	}
	if c.LeadsMaxForms < 1 {
		return fmt.Errorf("LEADS_MAX_FORMS must be positive")
	}
	if c.LeadsPerForm < 1 {
		return fmt.Errorf("LEADS_PER_FORM must be positive")
	}
	return nil
}

// GraphURL is the versioned Graph API root, e.g. https://graph.facebook.com/v19.0.
func (c Config) GraphURL() string {
	return c.GraphBaseURL + "/" + strings.Trim(c.GraphAPIVersion, "/")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

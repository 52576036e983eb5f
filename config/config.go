package config

import (
	"errors"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreSheets   = "sheets"
	StorePostgres = "postgres"
	StoreNone     = "none"
)

// Proxy backends.
const (
	ProxyScrapfly = "scrapfly"
	ProxyChrome   = "chrome"
)

// Config holds all application configuration loaded from environment variables.
// It is built once in main and passed down; nothing reads the environment after Load.
type Config struct {
	ScrapflyAPIKey   string
	ScrapflyAPIURL   string
	ScrapflyCountry  string
	ScrapflySession  string
	MaxRetrySleep    time.Duration
	ProxyBackend     string
	ChromeBin        string
	GumtreeBaseURL   string
	DefaultCategory  string
	ListingsPerPage  int
	MaxRetries       int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	DelayBetweenReqs time.Duration

	OutputDir      string
	OutputJSONPath string
	OutputCSVPath  string

	StoreBackend          string
	GoogleSheetsID        string
	GoogleSheetsRange     string
	GoogleCredentialsFile string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr      string
	RunHistorySize int

	Host     string
	Port     string
	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	outputDir := getEnv("OUTPUT_DIR", "output")

	return &Config{
		ScrapflyAPIKey:   getEnv("SCRAPFLY_API_KEY", ""),
		ScrapflyAPIURL:   getEnv("SCRAPFLY_API_URL", "https://api.scrapfly.io/scrape"),
		ScrapflyCountry:  getEnv("SCRAPFLY_COUNTRY", "AU"),
		ScrapflySession:  getEnv("SCRAPFLY_SESSION", ""),
		MaxRetrySleep:    getEnvSeconds("SCRAPFLY_MAX_RETRY_SLEEP_S", 120),
		ProxyBackend:     strings.ToLower(getEnv("PROXY_BACKEND", ProxyScrapfly)),
		ChromeBin:        getEnv("CHROME_BIN", ""),
		GumtreeBaseURL:   strings.TrimRight(getEnv("GUMTREE_BASE_URL", "https://www.gumtree.com.au"), "/"),
		DefaultCategory:  getEnv("DEFAULT_CATEGORY", "s-farming-veterinary/nsw/c21210l3008839"),
		ListingsPerPage:  getEnvInt("LISTINGS_PER_PAGE", 24),
		MaxRetries:       getEnvInt("MAX_RETRIES", 3),
		RetryDelay:       getEnvSeconds("RETRY_DELAY", 2),
		RequestTimeout:   getEnvSeconds("REQUEST_TIMEOUT", 240),
		DelayBetweenReqs: getEnvSeconds("DELAY_BETWEEN_REQUESTS", 0.5),

		OutputDir:      outputDir,
		OutputJSONPath: getEnv("OUTPUT_JSON_PATH", filepath.Join(outputDir, "gumtree_data.json")),
		OutputCSVPath:  getEnv("OUTPUT_CSV_PATH", filepath.Join(outputDir, "gumtree_data.csv")),

		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", StoreSheets)),
		GoogleSheetsID:        getEnv("GOOGLE_SHEETS_ID", ""),
		GoogleSheetsRange:     getEnv("GOOGLE_SHEETS_RANGE", "Sheet1!A:Z"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "gumtree"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RunHistorySize: getEnvInt("RUN_HISTORY_SIZE", 20),

		Host:     getEnv("HOST", "0.0.0.0"),
		Port:     getEnv("PORT", "5001"),
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// Validate reports settings that make the configured backends unusable.
func (c *Config) Validate() error {
	var errs []error

	switch c.ProxyBackend {
	case ProxyScrapfly:
		if c.ScrapflyAPIKey == "" {
			errs = append(errs, errors.New("SCRAPFLY_API_KEY is required for the scrapfly backend"))
		}
	case ProxyChrome:
	default:
		errs = append(errs, errors.New("PROXY_BACKEND must be scrapfly or chrome, got "+c.ProxyBackend))
	}

	switch c.StoreBackend {
	case StoreSheets:
		if c.GoogleSheetsID == "" {
			errs = append(errs, errors.New("GOOGLE_SHEETS_ID is required for the sheets store"))
		}
	case StorePostgres, StoreNone:
	default:
		errs = append(errs, errors.New("STORE_BACKEND must be sheets, postgres or none, got "+c.StoreBackend))
	}

	if _, err := url.ParseRequestURI(c.GumtreeBaseURL); err != nil {
		errs = append(errs, errors.New("GUMTREE_BASE_URL is not a valid URL"))
	}
	if c.ListingsPerPage <= 0 {
		errs = append(errs, errors.New("LISTINGS_PER_PAGE must be positive"))
	}

	return errors.Join(errs...)
}

// AllowedHost is the host every fetched target must belong to.
func (c *Config) AllowedHost() string {
	u, err := url.Parse(c.GumtreeBaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Addr is the listen address of the trigger server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvSeconds reads a (possibly fractional) number of seconds.
func getEnvSeconds(key string, fallback float64) time.Duration {
	secs := fallback
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 {
			secs = f
		}
	}
	return time.Duration(secs * float64(time.Second))
}

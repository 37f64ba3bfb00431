package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort            string
	PortalBaseURL         string
	LogLevel              string
	RequestTimeoutSeconds string
	MaxDetailWorkers      string
	CacheTTLMinutes       string
	CacheMaxSize          string
	PolitenessDelayMs     string
}

// DefaultPortalBaseURL is the Miami-Dade Clerk parking search endpoint; every
// GET and postback in the search protocol goes to this single URL.
const DefaultPortalBaseURL = "https://www2.miamidadeclerk.gov/payparking/parkingSearch.aspx"

// GetRequestTimeout returns the per-request portal timeout from environment or default
func (c *Config) GetRequestTimeout() time.Duration {
	seconds, err := strconv.Atoi(c.RequestTimeoutSeconds)
	if err != nil || seconds <= 0 {
		logrus.Warnf("Invalid REQUEST_TIMEOUT_SECONDS value: %s, using default 30 seconds", c.RequestTimeoutSeconds)
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}

// GetMaxDetailWorkers returns the concurrent detail-fetch cap from environment or default
func (c *Config) GetMaxDetailWorkers() int {
	workers, err := strconv.Atoi(c.MaxDetailWorkers)
	if err != nil || workers <= 0 {
		logrus.Warnf("Invalid MAX_DETAIL_WORKERS value: %s, using default 5", c.MaxDetailWorkers)
		return 5
	}
	return workers
}

// GetCacheTTL returns the search-result cache TTL from environment or default
func (c *Config) GetCacheTTL() time.Duration {
	minutes, err := strconv.Atoi(c.CacheTTLMinutes)
	if err != nil || minutes <= 0 {
		logrus.Warnf("Invalid CACHE_TTL_MINUTES value: %s, using default 5 minutes", c.CacheTTLMinutes)
		return 5 * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}

// GetCacheMaxSize returns the maximum number of cached search results
func (c *Config) GetCacheMaxSize() int {
	size, err := strconv.Atoi(c.CacheMaxSize)
	if err != nil || size <= 0 {
		logrus.Warnf("Invalid CACHE_MAX_SIZE value: %s, using default 128", c.CacheMaxSize)
		return 128
	}
	return size
}

// GetPolitenessDelay returns the minimum delay between portal requests.
// Zero disables the delay.
func (c *Config) GetPolitenessDelay() time.Duration {
	ms, err := strconv.Atoi(c.PolitenessDelayMs)
	if err != nil || ms < 0 {
		logrus.Warnf("Invalid POLITENESS_DELAY_MS value: %s, using default 0", c.PolitenessDelayMs)
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:            getEnv("SERVER_PORT", "3000"),
		PortalBaseURL:         getEnv("PORTAL_BASE_URL", DefaultPortalBaseURL),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		RequestTimeoutSeconds: getEnv("REQUEST_TIMEOUT_SECONDS", "30"),
		MaxDetailWorkers:      getEnv("MAX_DETAIL_WORKERS", "5"),
		CacheTTLMinutes:       getEnv("CACHE_TTL_MINUTES", "5"),
		CacheMaxSize:          getEnv("CACHE_MAX_SIZE", "128"),
		PolitenessDelayMs:     getEnv("POLITENESS_DELAY_MS", "0"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds resolver daemon settings. Load from env and/or a .env file.
type Config struct {
	// RegistryURL is the remote key registry document to fetch.
	RegistryURL string

	// Paths
	DataDir  string // registry document, sync stamp, download ledger
	CacheDir string // downloaded media files

	// HTTP surface for the playback/UI collaborator.
	BindAddr string // e.g. 127.0.0.1:5380

	// UserAgent is the attribution header sent on registry and media fetches.
	UserAgent string

	// Bounds
	MaxEntries       int   // registry capacity
	QueueCapacity    int   // download queue capacity
	MaxResponseBytes int64 // registry payload cap

	// Timing
	CacheMaxAge   time.Duration // registry staleness threshold
	QueueInterval time.Duration // minimum time between download attempts
	DriverTick    time.Duration // run-loop period (queue step + staleness check)
	FetchTimeout  time.Duration // registry fetch HTTP timeout

	// LedgerPath is the download history database. Empty disables the ledger.
	LedgerPath string
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load()
// to use a .env file.
func Load() *Config {
	c := &Config{
		RegistryURL:      os.Getenv("DIALTONE_REGISTRY_URL"),
		DataDir:          getEnv("DIALTONE_DATA_DIR", "/var/lib/dialtone"),
		CacheDir:         getEnv("DIALTONE_CACHE_DIR", "/var/cache/dialtone/audio"),
		BindAddr:         getEnv("DIALTONE_BIND", "127.0.0.1:5380"),
		UserAgent:        getEnv("DIALTONE_USER_AGENT", "DialTone/1.0"),
		MaxEntries:       getEnvInt("DIALTONE_MAX_ENTRIES", 50),
		QueueCapacity:    getEnvInt("DIALTONE_QUEUE_CAPACITY", 20),
		MaxResponseBytes: getEnvInt64("DIALTONE_MAX_RESPONSE_BYTES", 64<<10),
		CacheMaxAge:      getEnvDuration("DIALTONE_CACHE_MAX_AGE", 7*24*time.Hour),
		QueueInterval:    getEnvDuration("DIALTONE_QUEUE_INTERVAL", time.Second),
		DriverTick:       getEnvDuration("DIALTONE_DRIVER_TICK", time.Second),
		FetchTimeout:     getEnvDuration("DIALTONE_FETCH_TIMEOUT", 30*time.Second),
		LedgerPath:       os.Getenv("DIALTONE_LEDGER_PATH"),
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 50
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 20
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = 64 << 10
	}
	if c.DriverTick <= 0 {
		c.DriverTick = time.Second
	}
	if c.LedgerPath == "" && !getEnvBool("DIALTONE_LEDGER_DISABLED", false) {
		c.LedgerPath = c.DataDir + "/downloads.db"
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

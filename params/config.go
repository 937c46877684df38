package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Engine struct {
	// Channel buffer sizes for the three engine channels.
	OrderBuffer  int
	TickBuffer   int
	ResultBuffer int
	// DrainPoll bounds each receive while draining on shutdown: the
	// engine keeps processing orders that arrive within this window,
	// then stops.
	DrainPoll time.Duration
}

type API struct {
	Enabled bool
	Addr    string
}

type Journal struct {
	Enabled bool
	Path    string
}

// Feed configures the built-in order feeder used for local load testing.
// In production orders come from the upstream gateway instead.
type Feed struct {
	Enabled   bool
	Seed      int64
	BatchSize int
	Interval  time.Duration
}

type Config struct {
	Engine  Engine
	API     API
	Journal Journal
	Feed    Feed
	LogFile string
}

func Default() Config {
	return Config{
		Engine: Engine{
			OrderBuffer:  1024,
			TickBuffer:   4096,
			ResultBuffer: 1024,
			DrainPoll:    10 * time.Millisecond,
		},
		API: API{
			Enabled: true,
			Addr:    ":8080",
		},
		Journal: Journal{
			Enabled: true,
			Path:    "data/journal",
		},
		Feed: Feed{
			Enabled:   false,
			Seed:      1,
			BatchSize: 10,
			Interval:  100 * time.Millisecond,
		},
		LogFile: "data/engine.log",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables.
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("ORDER_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.OrderBuffer = n
		}
	}
	if v := os.Getenv("TICK_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.TickBuffer = n
		}
	}
	if v := os.Getenv("RESULT_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.ResultBuffer = n
		}
	}
	if v := os.Getenv("DRAIN_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Engine.DrainPoll = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("API_ENABLED"); v != "" {
		cfg.API.Enabled = v == "true"
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.Addr = v
	}

	if v := os.Getenv("JOURNAL_ENABLED"); v != "" {
		cfg.Journal.Enabled = v == "true"
	}
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("FEED_ENABLED"); v != "" {
		cfg.Feed.Enabled = v == "true"
	}
	if v := os.Getenv("FEED_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Feed.Seed = n
		}
	}
	if v := os.Getenv("FEED_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Feed.BatchSize = n
		}
	}
	if v := os.Getenv("FEED_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Feed.Interval = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}

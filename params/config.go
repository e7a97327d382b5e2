package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// RPCEndpoint is the Solana JSON-RPC node used for balance pre-checks.
	RPCEndpoint string
	// OracleTimeout bounds each balance query round-trip.
	OracleTimeout time.Duration

	// OrderBookFile is the flat JSON file holding the whole book (system
	// of record).
	OrderBookFile string
	// FillsDir is the Pebble directory for the fill journal.
	FillsDir string

	ListenAddr string
	LogFile    string
}

func Default() Config {
	return Config{
		RPCEndpoint:   "http://localhost:8899",
		OracleTimeout: 10 * time.Second,
		OrderBookFile: "data/order_book.json",
		FillsDir:      "data/fills",
		ListenAddr:    ":8080",
		LogFile:       "data/icodex.log",
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("RPC_ENDPOINT"); v != "" {
		cfg.RPCEndpoint = v
	}
	if v := os.Getenv("ORACLE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.OracleTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ORDER_BOOK_FILE"); v != "" {
		cfg.OrderBookFile = v
	}
	if v := os.Getenv("FILLS_DB_DIR"); v != "" {
		cfg.FillsDir = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return cfg
}

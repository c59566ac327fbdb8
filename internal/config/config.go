package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

// Load reads the .env file specified by FACTGATE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("FACTGATE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Missing files are fine; the process environment still applies.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// StoreBackend returns the fact store backend: memory, postgres or sqlite.
// Defaults to postgres when DATABASE_URL is set, memory otherwise.
func StoreBackend() string {
	b := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if b != "" {
		return b
	}
	if DatabaseURL() != "" {
		return BackendPostgres
	}
	return BackendMemory
}

func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "factgate.db"
	}
	return p
}

// RulesetPath returns the rule set file. Empty means the embedded tourism
// rule set.
func RulesetPath() string {
	return os.Getenv("RULESET_PATH")
}

// InferenceMaxIterations bounds derivation passes per run. Defaults to 10.
func InferenceMaxIterations() int {
	n, err := strconv.Atoi(os.Getenv("INFERENCE_MAX_ITERATIONS"))
	if err != nil || n <= 0 {
		return 10
	}
	return n
}

// CommitInterval is the period between scheduled commit cycles. Zero
// disables the scheduler and commits only run on request.
func CommitInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("COMMIT_INTERVAL"))
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// ProducerKey is one producer credential from PRODUCER_KEYS.
type ProducerKey struct {
	ID  string
	Key string
}

// ProducerKeys parses PRODUCER_KEYS ("id:key[,id:key]"). An empty list
// disables authentication.
func ProducerKeys() ([]ProducerKey, error) {
	return ParseProducerKeys(os.Getenv("PRODUCER_KEYS"))
}

func ParseProducerKeys(raw string) ([]ProducerKey, error) {
	seen := make(map[string]bool)
	var out []ProducerKey
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, key, ok := strings.Cut(entry, ":")
		id, key = strings.TrimSpace(id), strings.TrimSpace(key)
		if !ok || id == "" || key == "" {
			return nil, errors.Newf("PRODUCER_KEYS entry %q is not id:key", entry)
		}
		if seen[id] {
			return nil, errors.Newf("PRODUCER_KEYS lists producer %q twice", id)
		}
		seen[id] = true
		out = append(out, ProducerKey{ID: id, Key: key})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

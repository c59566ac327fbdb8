package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{
		"SERVER_PORT", "STORE_BACKEND", "DATABASE_URL", "SQLITE_PATH", "RULESET_PATH",
		"INFERENCE_MAX_ITERATIONS", "COMMIT_INTERVAL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	if got := ServerAddr(); got != ":8080" {
		t.Errorf("ServerAddr() = %q", got)
	}
	if got := StoreBackend(); got != BackendMemory {
		t.Errorf("StoreBackend() = %q", got)
	}
	if got := SQLitePath(); got != "factgate.db" {
		t.Errorf("SQLitePath() = %q", got)
	}
	if got := InferenceMaxIterations(); got != 10 {
		t.Errorf("InferenceMaxIterations() = %d", got)
	}
	if got := CommitInterval(); got != 0 {
		t.Errorf("CommitInterval() = %s", got)
	}
	if RateLimitRPS() != 100 || RateLimitBurst() != 20 {
		t.Errorf("rate limit defaults = %v/%d", RateLimitRPS(), RateLimitBurst())
	}
	if got := LogLevel(); got != "info" {
		t.Errorf("LogLevel() = %q", got)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/factgate")
	if got := StoreBackend(); got != BackendPostgres {
		t.Errorf("StoreBackend() with DATABASE_URL = %q", got)
	}

	t.Setenv("STORE_BACKEND", "SQLite")
	if got := StoreBackend(); got != BackendSQLite {
		t.Errorf("StoreBackend() = %q", got)
	}

	t.Setenv("COMMIT_INTERVAL", "45s")
	if got := CommitInterval(); got != 45*time.Second {
		t.Errorf("CommitInterval() = %s", got)
	}

	t.Setenv("INFERENCE_MAX_ITERATIONS", "-3")
	if got := InferenceMaxIterations(); got != 10 {
		t.Errorf("negative bound should fall back to default, got %d", got)
	}
}

func TestParseProducerKeys(t *testing.T) {
	tests := []struct {
		raw     string
		want    []ProducerKey
		wantErr bool
	}{
		{raw: "", want: nil},
		{raw: " , ", want: nil},
		{
			raw:  "reason:k3, ingest:k1,collect:k2",
			want: []ProducerKey{{"collect", "k2"}, {"ingest", "k1"}, {"reason", "k3"}},
		},
		{raw: "ingest:a:b", want: []ProducerKey{{"ingest", "a:b"}}},
		{raw: "ingest", wantErr: true},
		{raw: ":key", wantErr: true},
		{raw: "ingest:", wantErr: true},
		{raw: "ingest:a,ingest:b", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseProducerKeys(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseProducerKeys(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseProducerKeys(%q) = %v, want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseProducerKeys(%q)[%d] = %v, want %v", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLoadReadsEnvFileAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envFile+".secret", []byte("PRODUCER_KEYS=ingest:secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FACTGATE_ENV", envFile)
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("PRODUCER_KEYS", "")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("PRODUCER_KEYS")

	if err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := LogLevel(); got != "debug" {
		t.Errorf("LogLevel() = %q, want debug", got)
	}
	keys, err := ProducerKeys()
	if err != nil || len(keys) != 1 || keys[0].ID != "ingest" {
		t.Errorf("ProducerKeys() = %v, %v", keys, err)
	}
}

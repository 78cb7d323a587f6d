package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Ledger.Mode != LedgerModeAsync {
		t.Errorf("Ledger.Mode = %q, want async", cfg.Ledger.Mode)
	}
	if cfg.Ledger.ConfirmTimeout != 30*time.Second {
		t.Errorf("ConfirmTimeout = %v", cfg.Ledger.ConfirmTimeout)
	}
	if !cfg.CheckReferences {
		t.Error("CheckReferences should default to true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LEDGER_MODE", "SYNC")
	t.Setenv("LEDGER_PRIVATE_KEY", "0xabc123")
	t.Setenv("LEDGER_CONFIRM_TIMEOUT", "5s")
	t.Setenv("LEDGER_WORKERS", "nope")
	t.Setenv("CHECK_REFERENCES", "false")

	cfg := Load()
	if got := strings.Join(cfg.KafkaBrokers, "|"); got != "k1:9092|k2:9092" {
		t.Errorf("KafkaBrokers = %q", got)
	}
	if cfg.Ledger.Mode != LedgerModeSync {
		t.Errorf("Mode = %q", cfg.Ledger.Mode)
	}
	if cfg.Ledger.PrivateKey != "abc123" {
		t.Errorf("PrivateKey = %q", cfg.Ledger.PrivateKey)
	}
	if cfg.Ledger.ConfirmTimeout != 5*time.Second {
		t.Errorf("ConfirmTimeout = %v", cfg.Ledger.ConfirmTimeout)
	}
	if cfg.Worker.Workers != 4 {
		t.Errorf("Workers = %d, want default 4 on bad input", cfg.Worker.Workers)
	}
	if cfg.CheckReferences {
		t.Error("CheckReferences should be false")
	}
	// 5s wait + 3 retries x 30s backoff, plus headroom
	if cfg.RequestTimeout != 100*time.Second {
		t.Errorf("RequestTimeout = %v, want 100s in sync mode", cfg.RequestTimeout)
	}
}

func TestRequestTimeoutDefaultsAsync(t *testing.T) {
	if got := Load().RequestTimeout; got != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		needLedger bool
		wantErr    string
	}{
		{name: "async api ok", mutate: func(*Config) {}},
		{name: "bad mode", mutate: func(c *Config) { c.Ledger.Mode = "later" }, wantErr: "LEDGER_MODE"},
		{name: "ledger missing address", mutate: func(c *Config) { c.Ledger.PrivateKey = "aa" }, needLedger: true, wantErr: "CONTRACT_ADDRESS"},
		{name: "ledger missing key", mutate: func(c *Config) { c.Ledger.ContractAddress = "0x01" }, needLedger: true, wantErr: "LEDGER_PRIVATE_KEY"},
		{name: "ledger ok", mutate: func(c *Config) {
			c.Ledger.ContractAddress = "0x01"
			c.Ledger.PrivateKey = "aa"
		}, needLedger: true},
		{name: "sync budget exceeds request timeout", mutate: func(c *Config) {
			c.Ledger.Mode = LedgerModeSync
			c.Ledger.ContractAddress = "0x01"
			c.Ledger.PrivateKey = "aa"
			c.RequestTimeout = 15 * time.Second
		}, needLedger: true, wantErr: "HTTP_REQUEST_TIMEOUT"},
		{name: "sync budget fits", mutate: func(c *Config) {
			c.Ledger.Mode = LedgerModeSync
			c.Ledger.ContractAddress = "0x01"
			c.Ledger.PrivateKey = "aa"
			c.Ledger.ConfirmTimeout = 10 * time.Second
			c.Ledger.MaxRetries = 1
			c.Ledger.RetryMax = 2 * time.Second
			c.RequestTimeout = 15 * time.Second
		}, needLedger: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.needLedger)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

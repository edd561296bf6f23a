package main

import "testing"

func baseValidConfig() config {
	cfg := defaultConfig()
	cfg.TxSourceURLs = []string{"https://archive.example.com"}
	return cfg
}

func TestValidateRequiresTxSourceURLUnlessOffline(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error with no tx-source-url and offline unset")
	}

	cfg.Offline = true
	if err := cfg.validate(); err != nil {
		t.Fatalf("offline config should not require tx-source-url: %v", err)
	}
}

func TestValidateRejectsBadListenPort(t *testing.T) {
	cfg := baseValidConfig()
	cfg.ListenPort = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for listen-port 0")
	}

	cfg.ListenPort = 70000
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for listen-port out of range")
	}
}

func TestValidateRejectsNonPositiveWorkerCounts(t *testing.T) {
	cfg := baseValidConfig()
	cfg.MaxScanWorkers = 0
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for max-scan-workers 0")
	}

	cfg = baseValidConfig()
	cfg.MaxRequestWorkers = -1
	if err := cfg.validate(); err == nil {
		t.Fatal("expected an error for negative max-request-workers")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := baseValidConfig()
	if err := cfg.validate(); err != nil {
		t.Fatalf("expected default config to validate, got: %v", err)
	}
}

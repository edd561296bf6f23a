package main

import (
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLedgerDBDirname  = "ledger"
	defaultWalletDBFilename = "wallet.db"
	defaultLogFilename      = "walletd.log"
	defaultMacaroonFilename = "macaroon.key"
	defaultListenHost       = "localhost"
	defaultListenPort       = 9090
	defaultMaxScanWorkers   = 4
	defaultMaxRequestWorkers = 16
	defaultMaxLogFileSize   = 10
	defaultMaxLogFiles      = 3
)

// config is the daemon's full set of operator-settable knobs: spec.md §6's
// enumerated options, plus the ambient pieces (auth, logging, worker-pool
// sizing) SPEC_FULL.md §6 adds. Parsed with go-flags, in the plain
// enumerated-record style spec.md's design notes call for.
type config struct {
	DataDir string `long:"datadir" description:"Directory to store the ledger and wallet databases in"`

	ChainID string `long:"chain-id" description:"Namespace tag included in peer/archive validation"`

	Peers        []string `long:"peer" description:"Peer RPC endpoint (may be given multiple times)"`
	TxSourceURLs []string `long:"tx-source-url" description:"Archive base URL to fetch blocks from (may be given multiple times)"`

	LedgerDB string `long:"ledger-db" description:"Block Store database file path"`
	WalletDB string `long:"wallet-db" description:"Wallet DB path; if absent, walletd runs view-only against an in-memory account set"`

	ListenHost string `long:"listen-host" description:"Request surface bind host"`
	ListenPort int    `long:"listen-port" description:"Request surface bind port"`

	Offline bool `long:"offline" description:"Disable all network I/O; requires a preloaded Block Store"`

	FogIngestEnclaveCSS string `long:"fog-ingest-enclave-css" description:"Path to the signed measurement consumed by fog output construction"`

	MacaroonRootKeyPath string `long:"macaroon-root-key-path" description:"Path to the macaroon root key; defaults to a file under the data directory"`

	MaxScanWorkers    int `long:"max-scan-workers" description:"Upper bound on concurrently scanning accounts"`
	MaxRequestWorkers int `long:"max-request-workers" description:"Upper bound on concurrently dispatched requests"`

	LogDir      string `long:"logdir" description:"Directory to log output to"`
	DebugLevel  string `long:"debuglevel" description:"Logging level for all subsystems (trace, debug, info, warn, error, critical)"`
	MaxLogFiles int    `long:"maxlogfiles" description:"Maximum number of rotated log files to keep"`
	MaxLogSize  int    `long:"maxlogfilesize" description:"Maximum log file size in MB before rotation"`
}

// defaultConfig returns a config pre-filled with every default named
// above, mirroring the flat default-struct-then-override-from-flags
// pattern the teacher's loadConfig uses.
func defaultConfig() config {
	return config{
		DataDir:           defaultDataDir(),
		ChainID:           "mobilecoin",
		ListenHost:        defaultListenHost,
		ListenPort:        defaultListenPort,
		MaxScanWorkers:    defaultMaxScanWorkers,
		MaxRequestWorkers: defaultMaxRequestWorkers,
		DebugLevel:        "info",
		MaxLogFiles:       defaultMaxLogFiles,
		MaxLogSize:        defaultMaxLogFileSize,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletd"
	}
	return filepath.Join(home, ".walletd")
}

// loadConfig parses the command line (and, via go-flags' INI support, a
// config file passed with -C) into a config, filling in directory-derived
// defaults that depend on DataDir after flag parsing completes.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if cfg.LedgerDB == "" {
		cfg.LedgerDB = filepath.Join(cfg.DataDir, defaultLedgerDBDirname)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = cfg.DataDir
	}
	if cfg.MacaroonRootKeyPath == "" {
		cfg.MacaroonRootKeyPath = filepath.Join(cfg.DataDir, defaultMacaroonFilename)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if !c.Offline && len(c.TxSourceURLs) == 0 {
		return fmt.Errorf("at least one -tx-source-url is required unless -offline is set")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen-port %d", c.ListenPort)
	}
	if c.MaxScanWorkers <= 0 {
		return fmt.Errorf("max-scan-workers must be positive")
	}
	if c.MaxRequestWorkers <= 0 {
		return fmt.Errorf("max-request-workers must be positive")
	}
	return nil
}

func (c *config) logFilePath() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

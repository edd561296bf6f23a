package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/vrecan/death/v3"

	"github.com/mobilecoinofficial/full-service-sub000/build"
)

const shutdownTimeout = 10 * time.Second

func walletdMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	logRot := build.NewRotatingLogWriter()
	if err := logRot.InitLogRotator(cfg.logFilePath(), cfg.MaxLogSize, cfg.MaxLogFiles); err != nil {
		return fmt.Errorf("initializing log rotator: %w", err)
	}
	defer logRot.Close()
	SetupLoggers(logRot)
	logRot.SetLogLevels(cfg.DebugLevel)

	d, err := newDaemon(cfg, logRot)
	if err != nil {
		return fmt.Errorf("initializing walletd: %w", err)
	}

	listenAddr := fmt.Sprintf("%s:%d", cfg.ListenHost, cfg.ListenPort)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}

	httpSrv := &http.Server{Handler: d.server}

	log.Infof("walletd listening on %s (chain-id=%s, offline=%v)", listenAddr, cfg.ChainID, cfg.Offline)
	d.Start()

	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("request surface stopped: %v", err)
		}
	}()

	deathWatcher := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	deathWatcher.WaitForDeathWithFunc(func() {
		log.Infof("walletd shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)

		d.Stop()
	})

	return nil
}

func main() {
	if err := walletdMain(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

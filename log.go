package main

import (
	"github.com/decred/slog"

	"github.com/mobilecoinofficial/full-service-sub000/balance"
	"github.com/mobilecoinofficial/full-service-sub000/build"
	"github.com/mobilecoinofficial/full-service-sub000/keyimage"
	"github.com/mobilecoinofficial/full-service-sub000/ledger"
	"github.com/mobilecoinofficial/full-service-sub000/peer"
	"github.com/mobilecoinofficial/full-service-sub000/ring"
	"github.com/mobilecoinofficial/full-service-sub000/rpc"
	"github.com/mobilecoinofficial/full-service-sub000/scanner"
	"github.com/mobilecoinofficial/full-service-sub000/selector"
	"github.com/mobilecoinofficial/full-service-sub000/signer"
	"github.com/mobilecoinofficial/full-service-sub000/submission"
	"github.com/mobilecoinofficial/full-service-sub000/sync"
	"github.com/mobilecoinofficial/full-service-sub000/txbuilder"
	"github.com/mobilecoinofficial/full-service-sub000/walletdb"
)

// replaceableLogger lets a package-level logger declared here be swapped
// for its real sub-logger once the root rotator is ready, the same
// before-SetupLoggers-runs placeholder the teacher's lndPkgLoggers use.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

var (
	pkgLoggers []*replaceableLogger

	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{Logger: build.NewSubLogger(subsystem, nil), subsystem: subsystem}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	log = addPkgLogger("WALD")
)

// SetupLoggers wires every subsystem's package-level logger to root,
// replacing the placeholders declared above (§ ambient logging stack,
// `github.com/decred/slog` + rotating file writer).
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "WDBS", walletdb.UseLogger)
	AddSubLogger(root, "LDGR", ledger.UseLogger)
	AddSubLogger(root, "SCAN", scanner.UseLogger)
	AddSubLogger(root, "PEER", peer.UseLogger)
	AddSubLogger(root, "SUBM", submission.UseLogger)
	AddSubLogger(root, "RING", ring.UseLogger)
	AddSubLogger(root, "SYNC", sync.UseLogger)
	AddSubLogger(root, "SIGN", signer.UseLogger)
	AddSubLogger(root, "TXBD", txbuilder.UseLogger)
	AddSubLogger(root, "BLNC", balance.UseLogger)
	AddSubLogger(root, "SLCT", selector.UseLogger)
	AddSubLogger(root, "RPCS", rpc.UseLogger)
	AddSubLogger(root, "KIMG", keyimage.UseLogger)
}

// AddSubLogger creates and registers the logger for one or more
// subsystems sharing a tag.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string, useLoggers ...func(slog.Logger)) {
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger registers an already-built logger for a subsystem.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string, logger slog.Logger, useLoggers ...func(slog.Logger)) {
	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure defers an expensive log argument's formatting until the
// message is actually emitted.
type logClosure func() string

func (c logClosure) String() string { return c() }

func newLogClosure(c func() string) logClosure { return logClosure(c) }

package sync

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Ledger Syncer.
func UseLogger(logger slog.Logger) { log = logger }

package selector

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Txo Selector.
func UseLogger(logger slog.Logger) { log = logger }

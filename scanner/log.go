package scanner

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Account Scanner.
func UseLogger(logger slog.Logger) { log = logger }

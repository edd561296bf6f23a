package txbuilder

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the Transaction Builder.
func UseLogger(logger slog.Logger) { log = logger }

package peer

import "github.com/decred/slog"

var log slog.Logger = slog.Disabled

// UseLogger sets the package-level logger used by the peer client and
// archive fetcher.
func UseLogger(logger slog.Logger) { log = logger }

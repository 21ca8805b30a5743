// Package cefmarker enables Steam's CEF remote-debugging flag by
// touching the empty marker file Steam checks for at startup. Steam
// must be restarted after the file is created the first time; see
// original_source/src/enable_cef.rs, which this package generalizes
// with a Go per-platform path.
package cefmarker

import (
	"fmt"
	"log/slog"
	"os"
)

// Enable creates the marker file if it does not already exist. It
// returns false when this platform has no known marker path, or when
// the file could not be created; both are non-fatal to the caller —
// the operator can create the file by hand.
func Enable() bool {
	path := markerPath()
	if path == "" {
		slog.Warn("cef debugging marker has no known path on this platform")
		return false
	}

	if _, err := os.Stat(path); err == nil {
		return true
	}

	f, err := os.Create(path)
	if err != nil {
		slog.Error("failed to enable cef debugging", "path", path, "error", err)
		slog.Info(fmt.Sprintf("try creating an empty file manually at %s", path))
		return false
	}
	f.Close()

	slog.Warn("cef remote debugging was not enabled, restart steam if it's running")
	return true
}

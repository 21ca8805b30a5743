// Package pidfile is a best-effort, OS-level safety net for killing a
// leftover Conductor process. The supervisor calls KillPrevious at
// startup only after the CDP-based singleton protocol (spec §4.6's
// Probe/Kill-other-instance sequence, see internal/cdp) has detected
// and killed another instance, as a second, OS-level kill of it. It is
// grounded on original_source/src/process.rs and does not replace the
// CDP protocol; it supplements it.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const fileName = "conductor.pid"

// Store writes the current process's PID into dataDir, creating the
// directory if necessary.
func Store(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	pid := os.Getpid()
	path := filepath.Join(dataDir, fileName)

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// KillPrevious reads a previously stored PID from dataDir and attempts
// to terminate that process. A missing or unreadable file is not an
// error: there may simply be no previous instance.
func KillPrevious(dataDir string) error {
	path := filepath.Join(dataDir, fileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("parsing pid file contents %q: %w", data, err)
	}

	return killPID(pid)
}

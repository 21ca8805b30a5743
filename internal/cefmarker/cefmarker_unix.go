//go:build linux || darwin

package cefmarker

import (
	"os"
	"path/filepath"
	"runtime"
)

func markerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Steam", ".cef-enable-remote-debugging")
	}
	return filepath.Join(home, ".steam", "steam", ".cef-enable-remote-debugging")
}

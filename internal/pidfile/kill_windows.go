//go:build windows

package pidfile

import (
	"fmt"
	"os/exec"
	"strconv"
)

func killPID(pid int) error {
	out, err := exec.Command("taskkill", "/f", "/pid", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill: %w (output: %s)", err, out)
	}
	return nil
}

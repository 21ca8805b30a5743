//go:build linux || darwin

package pidfile

import "golang.org/x/sys/unix"

func killPID(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

package service

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// ParseSignal maps a textual signal onto a syscall.Signal. Accepts a short
// name with or without the SIG prefix (term, kill, int, hup, usr1, usr2)
// or a positive numeric value.
func ParseSignal(s string) (syscall.Signal, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.ToUpper(s), "SIG")) {
	case "kill":
		return syscall.SIGKILL, nil
	case "term":
		return syscall.SIGTERM, nil
	case "int":
		return syscall.SIGINT, nil
	case "hup":
		return syscall.SIGHUP, nil
	case "usr1":
		return syscall.SIGUSR1, nil
	case "usr2":
		return syscall.SIGUSR2, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

package service

import (
	"syscall"
	"testing"
)

func TestParseSignal(t *testing.T) {
	cases := []struct {
		in      string
		want    syscall.Signal
		wantErr bool
	}{
		{"term", syscall.SIGTERM, false},
		{"TERM", syscall.SIGTERM, false},
		{"SIGTERM", syscall.SIGTERM, false},
		{"kill", syscall.SIGKILL, false},
		{"int", syscall.SIGINT, false},
		{"hup", syscall.SIGHUP, false},
		{"usr1", syscall.SIGUSR1, false},
		{"usr2", syscall.SIGUSR2, false},
		{"9", syscall.Signal(9), false},
		{"", 0, true},
		{"zap", 0, true},
		{"-3", 0, true},
		{"0", 0, true},
	}
	for _, c := range cases {
		got, err := ParseSignal(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseSignal(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSignal(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseSignal(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

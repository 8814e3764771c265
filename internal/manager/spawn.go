package manager

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/loykin/observr/internal/logger"
)

// SpawnFunc launches a watch for one observer in a separate process and
// blocks until that process exits.
type SpawnFunc func(ctx context.Context, name, path string, duration time.Duration) error

// SelfSpawn returns a SpawnFunc that re-executes the current binary with
// the watch subcommand. The child process creates its own observer, so it
// records changes independently of the parent. Child output goes to the
// rotating per-process log files from cfg; with no file destination
// configured the output is discarded.
func SelfSpawn(cfg logger.Config) SpawnFunc {
	return func(ctx context.Context, name, path string, duration time.Duration) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve executable: %w", err)
		}

		args := []string{"watch", "--path", path, "--name", name}
		if duration > 0 {
			args = append(args, "--duration", duration.String())
		}

		cmd := exec.CommandContext(ctx, exe, args...)
		stdout, stderr, err := cfg.ProcessWriters(name)
		if err != nil {
			return fmt.Errorf("failed to open log writers for %q: %w", name, err)
		}
		if stdout != nil {
			defer func() { _ = stdout.Close() }()
			cmd.Stdout = stdout
		}
		if stderr != nil {
			defer func() { _ = stderr.Close() }()
			cmd.Stderr = stderr
		}

		if err := cmd.Run(); err != nil {
			return fmt.Errorf("watch process for %q failed: %w", name, err)
		}
		return nil
	}
}

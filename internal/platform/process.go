package platform

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/steipete/codelooper/internal/logging"
	"github.com/steipete/codelooper/internal/supervisor"
)

// enumerationTimeout bounds each external tool invocation so a wedged
// pgrep cannot stall a supervision tick.
const enumerationTimeout = 2 * time.Second

// Processes finds target application processes with pgrep and checks
// liveness with a zero signal. It implements supervisor.ProcessObserver.
type Processes struct {
	logger *logging.Logger
}

// NewProcesses creates a process observer.
func NewProcesses(logger *logging.Logger) *Processes {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Processes{logger: logger}
}

// Running returns one AppInfo per live process whose command line
// mentions one of the bundle identifiers. A bundle id with no matching
// process is not an error.
func (p *Processes) Running(ctx context.Context, bundleIDs []string) ([]supervisor.AppInfo, error) {
	var infos []supervisor.AppInfo
	seen := make(map[int32]bool)

	for _, id := range bundleIDs {
		pids, err := pgrep(ctx, id)
		if err != nil {
			p.logger.Warn("process lookup failed", "bundle_id", id, "error", err)
			return nil, err
		}
		for _, pid := range pids {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			infos = append(infos, supervisor.AppInfo{
				PID:         pid,
				BundleID:    id,
				DisplayName: processName(ctx, pid, id),
			})
		}
	}
	return infos, nil
}

// Alive reports whether the process still exists.
// A zero signal checks existence without delivering anything.
func (p *Processes) Alive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(int(pid), 0) == nil
}

// pgrep returns the pids whose full command line matches the pattern.
// Exit status 1 means no matches and is not an error.
func pgrep(ctx context.Context, pattern string) ([]int32, error) {
	ctx, cancel := context.WithTimeout(ctx, enumerationTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "pgrep", "-f", "--", pattern).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}
	return parsePIDs(string(out)), nil
}

// parsePIDs extracts pids from pgrep output, one per line.
func parsePIDs(out string) []int32 {
	var pids []int32
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids
}

// processName asks ps for the short command name, falling back to the
// bundle id when the process vanished in between.
func processName(ctx context.Context, pid int32, fallback string) string {
	ctx, cancel := context.WithTimeout(ctx, enumerationTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ps", "-p", strconv.Itoa(int(pid)), "-o", "comm=").Output()
	if err != nil {
		return fallback
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return fallback
	}
	return name
}

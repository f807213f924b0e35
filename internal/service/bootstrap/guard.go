package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/pysteps-data-fetcher/internal/logger"
)

// commLimit is the length Linux truncates process names to.
const commLimit = 15

// warnConcurrentRuns logs a warning when another process with this executable name is running.
// Two runs against one destination race on the rename; the warning makes that visible in CI logs.
func warnConcurrentRuns(ctx context.Context) {
	self := filepath.Base(os.Args[0])

	pids, err := otherInstances(self)
	if err != nil {
		logger.DebugKV(ctx, "Unable to list processes", "error", err)
		return
	}

	if len(pids) > 0 {
		logger.WarnKV(ctx, "Another instance is running", "executable", self, "pids", pids)
	}
}

// otherInstances returns the pids of processes named like self, excluding this one.
func otherInstances(self string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()

	var pids []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if sameExecutable(process.Executable(), self) {
			pids = append(pids, process.Pid())
		}
	}

	return pids, nil
}

func sameExecutable(name, self string) bool {
	if name == self {
		return true
	}

	return len(name) == commLimit && strings.HasPrefix(self, name)
}

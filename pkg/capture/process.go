package capture

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// FindProcesses returns the ids of running processes whose name contains
// target, case-insensitively. An empty target matches nothing and returns a
// nil slice, which drivers treat as system-wide capture.
func FindProcesses(target string) ([]int32, error) {
	if target == "" {
		return nil, nil
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	want := strings.ToLower(target)
	var pids []int32
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(name), want) {
			pids = append(pids, p.Pid)
		}
	}

	if len(pids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotRunning, target)
	}
	return pids, nil
}

// ProcessesAlive reports whether any of pids still exists. An empty list
// (system-wide capture) is always alive.
func ProcessesAlive(pids []int32) bool {
	if len(pids) == 0 {
		return true
	}
	for _, pid := range pids {
		if ok, err := process.PidExists(pid); err == nil && ok {
			return true
		}
	}
	return false
}

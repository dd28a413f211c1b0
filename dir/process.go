package dir

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// pidRegex matches the numeric directories /proc uses for each running
// process.
var pidRegex = regexp.MustCompile(`^[0-9]+$`)

// ProcessesMatching scans /proc for processes whose command line matches
// regex, for the Control Plane's Stop fallback (spec.md §4.J: "falls back
// to scanning the process table for matching argv" when a PID file is
// stale or missing). This is the same walk-and-regex-match shape as
// List/Expired, applied to /proc instead of an output directory.
func ProcessesMatching(regex string) ([]int, error) {
	isDesired := regexp.MustCompile(regex)
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var pids []int
	for _, entry := range entries {
		if !entry.IsDir() || !pidRegex.MatchString(entry.Name()) {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		argv := strings.ReplaceAll(string(cmdline), "\x00", " ")
		if isDesired.MatchString(argv) {
			pid, err := strconv.Atoi(entry.Name())
			if err == nil {
				pids = append(pids, pid)
			}
		}
	}
	return pids, nil
}

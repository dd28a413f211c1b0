package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/dir"
)

// StopGrace is how long Stop waits after SIGTERM before escalating to
// SIGKILL, per spec.md §4.J.
const StopGrace = 5 * time.Second

// Stop reads pids/<stage>-<i>.pid for every stage in names, sends SIGTERM,
// waits up to StopGrace, and escalates to SIGKILL for anything still
// alive. If a PID file is missing or its PID is already dead, it falls
// back to scanning /proc for a process whose argv mentions the stage name.
func Stop(names []string, pidDir string) error {
	if pidDir == "" {
		pidDir = PidDirDefault
	}

	var lastErr error
	for _, stage := range names {
		pids, err := pidsForStage(stage, pidDir)
		if err != nil {
			log.Warnln("control: stop", stage, "pid lookup:", err)
			lastErr = err
			continue
		}
		for _, pid := range pids {
			if err := stopPid(pid); err != nil {
				log.Warnln("control: stop pid", pid, ":", err)
				lastErr = err
			}
		}
	}
	return lastErr
}

func pidsForStage(stage, pidDir string) ([]int, error) {
	matches, _ := filepath.Glob(filepath.Join(pidDir, stage+"-*.pid"))
	var pids []int
	for _, file := range matches {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			continue
		}
		if processAlive(pid) {
			pids = append(pids, pid)
		} else {
			log.Debugf("control: pid file %s stale, falling back to argv scan", file)
		}
	}
	if len(pids) > 0 {
		return pids, nil
	}

	found, err := dir.ProcessesMatching(fmt.Sprintf("mcmot-worker.*-stage %s", stage))
	if err != nil {
		return nil, fmt.Errorf("control: argv scan for %s: %w", stage, err)
	}
	return found, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func stopPid(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sigterm pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(StopGrace)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			log.Infof("control: pid %d exited cleanly", pid)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	log.Warnf("control: pid %d still alive after %s, escalating to SIGKILL", pid, StopGrace)
	return proc.Signal(syscall.SIGKILL)
}

package control

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// PidDirDefault is where Start writes pids/<stage>-<i>.pid, per spec.md §6.
const PidDirDefault = "pids"

// Start spawns replication-factor copies of cmd/mcmot-worker for one
// stage entry, each with -stage/-config flags, and records each child's
// PID to pids/<stage>-<i>.pid. Grounded on the os/exec.Command pattern
// other pack repos use for shelling out to subprocesses (e.g.
// other_examples/5krotov-CVCameraTracker__service.go's ffmpeg/ffprobe
// invocations), generalized here to spawning the pipeline's own worker
// binary instead of a media tool.
func Start(workerBinary string, entry StageEntry, pidDir string) ([]*os.Process, error) {
	if pidDir == "" {
		pidDir = PidDirDefault
	}
	if err := os.MkdirAll(pidDir, 0o755); err != nil {
		return nil, fmt.Errorf("control: pid dir: %w", err)
	}

	var procs []*os.Process
	for i := 0; i < entry.replicationFactor(); i++ {
		cmd := exec.Command(workerBinary, "-stage", entry.Name, "-config", entry.ConfigPath)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return procs, fmt.Errorf("control: start %s worker %d: %w", entry.Name, i, err)
		}

		pidFile := filepath.Join(pidDir, fmt.Sprintf("%s-%d.pid", entry.Name, i))
		if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o644); err != nil {
			log.Warnln("control: write pid file:", err)
		}
		log.Infof("control: started %s worker %d pid=%d", entry.Name, i, cmd.Process.Pid)
		procs = append(procs, cmd.Process)
	}
	return procs, nil
}

// Package hotreload watches a stage's config file and invokes a restart
// callback when it changes, adapted from jonoton-scout/manage.Manage's
// radovskyb/watcher-driven monitorConfigChanges/doMonitorConfigChanges,
// generalized from "reconfigure one Monitor" to "restart one stage
// worker process's in-process Stage".
package hotreload

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/radovskyb/watcher"
)

// Watcher watches a single config path and calls onChange whenever it is
// written, matching the teacher's 500ms poll interval.
type Watcher struct {
	w        *watcher.Watcher
	path     string
	onChange func()
	done     chan struct{}
}

// New wires a Watcher for path. onChange is invoked (synchronously, from
// the watcher's own goroutine) on every write event.
func New(path string, onChange func()) *Watcher {
	return &Watcher{
		w:        watcher.New(),
		path:     path,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start begins watching in the background. Call Close to stop.
func (hw *Watcher) Start() error {
	if err := hw.w.Add(hw.path); err != nil {
		return err
	}

	go func() {
		defer close(hw.done)
		for {
			select {
			case event, ok := <-hw.w.Event:
				if !ok {
					return
				}
				log.Infof("hotreload: config changed: %s", event.Path)
				hw.onChange()
			case err, ok := <-hw.w.Error:
				if !ok {
					return
				}
				log.Warnln("hotreload: watcher error:", err)
			case <-hw.w.Closed:
				return
			}
		}
	}()

	go func() {
		if err := hw.w.Start(500 * time.Millisecond); err != nil {
			log.Errorln("hotreload: watcher start failed:", err)
		}
	}()
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (hw *Watcher) Close() {
	hw.w.Close()
	<-hw.done
}

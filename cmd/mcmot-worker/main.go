// Command mcmot-worker runs exactly one pipeline stage, selected by
// -stage, for the life of the process. The Control Plane spawns one of
// these per replica via os/exec; see control.Start.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/analytics"
	"github.com/jonoton/mcmot/capture"
	"github.com/jonoton/mcmot/detection"
	"github.com/jonoton/mcmot/hotreload"
	"github.com/jonoton/mcmot/reid"
	"github.com/jonoton/mcmot/tracker"
	"github.com/jonoton/mcmot/unification"
)

// Exit codes per spec.md §6.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitBrokerDown    = 3
	exitModelLoadFail = 4
)

func init() {
	formatter := &log.TextFormatter{}
	formatter.TimestampFormat = "01-02-2006 15:04:05"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)
	log.SetOutput(os.Stdout)
}

// runFunc runs one generation of a stage against configPath until ctx is
// cancelled, then returns an exit code. It never calls os.Exit itself --
// main owns the process exit code.
type runFunc func(ctx context.Context, configPath string) int

var stageRunners = map[string]runFunc{
	"capture":     runCapture,
	"detection":   runDetection,
	"reid":        runReid,
	"tracker":     runTracker,
	"unification": runUnification,
	"analytics":   runAnalytics,
}

func main() {
	stageName := flag.String("stage", "", "stage to run: capture|detection|reid|tracker|unification|analytics")
	configPath := flag.String("config", "", "path to the stage's YAML config file")
	flag.Parse()

	if *stageName == "" || *configPath == "" {
		log.Errorln("usage: mcmot-worker -stage <name> -config <path>")
		os.Exit(exitConfigError)
	}

	run, ok := stageRunners[*stageName]
	if !ok {
		log.Errorf("mcmot-worker: unknown stage %q", *stageName)
		os.Exit(exitConfigError)
	}

	shutdown, shutdownCancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Infoln("mcmot-worker: captured shutdown signal")
		shutdownCancel()
	}()

	// Each generation gets its own cancellable context derived from the
	// process-wide shutdown context, so a config change restarts the
	// stage in place rather than exiting the process -- grounded on
	// jonoton-scout/manage.Manage restarting a Monitor on a config
	// change rather than tearing down the whole fleet.
	for {
		genCtx, genCancel := context.WithCancel(shutdown)
		reloaded := make(chan struct{}, 1)
		watcher := hotreload.New(*configPath, func() {
			select {
			case reloaded <- struct{}{}:
			default:
			}
			genCancel()
		})
		if err := watcher.Start(); err != nil {
			log.Warnln("mcmot-worker: config watch disabled:", err)
		}

		code := run(genCtx, *configPath)
		watcher.Close()
		genCancel()

		select {
		case <-reloaded:
			log.Infoln("mcmot-worker: config changed, restarting stage")
			continue
		default:
		}

		if shutdown.Err() != nil {
			os.Exit(exitOK)
		}
		os.Exit(code)
	}
}

func runCapture(ctx context.Context, configPath string) int {
	cfg := capture.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	runner, err := capture.NewRunner(cfg)
	if err != nil {
		log.Errorln("capture: broker unreachable:", err)
		return exitBrokerDown
	}
	defer runner.Close()
	runner.Run(ctx)
	return exitOK
}

func runDetection(ctx context.Context, configPath string) int {
	cfg := detection.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	s, err := detection.NewStage(cfg)
	if err != nil {
		log.Errorln("detection: model load failure:", err)
		return exitModelLoadFail
	}
	defer s.Close()
	rt, err := s.Runtime()
	if err != nil {
		log.Errorln("detection: broker unreachable:", err)
		return exitBrokerDown
	}
	defer rt.Close()
	rt.Start(ctx)
	rt.Wait()
	return exitOK
}

func runReid(ctx context.Context, configPath string) int {
	cfg := reid.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	s, err := reid.NewStage(cfg)
	if err != nil {
		log.Errorln("reid: model load failure:", err)
		return exitModelLoadFail
	}
	defer s.Close()
	rt, err := s.Runtime()
	if err != nil {
		log.Errorln("reid: broker unreachable:", err)
		return exitBrokerDown
	}
	defer rt.Close()
	rt.Start(ctx)
	rt.Wait()
	return exitOK
}

func runTracker(ctx context.Context, configPath string) int {
	cfg := tracker.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	s, err := tracker.NewStage(cfg)
	if err != nil {
		log.Errorln("tracker: broker unreachable:", err)
		return exitBrokerDown
	}
	defer s.Close()
	s.Run(ctx)
	return exitOK
}

func runUnification(ctx context.Context, configPath string) int {
	cfg := unification.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	s, err := unification.NewStage(cfg)
	if err != nil {
		log.Errorln("unification: broker unreachable:", err)
		return exitBrokerDown
	}
	defer s.Close()
	s.Run(ctx)
	return exitOK
}

func runAnalytics(ctx context.Context, configPath string) int {
	cfg := analytics.NewConfig(configPath)
	if cfg == nil {
		return exitConfigError
	}
	llm := analytics.NewHTTPLLM("https://api.openai.com/v1", "gpt-4o-mini", "MCMOT_LLM_API_KEY")
	s, err := analytics.NewStage(cfg, llm)
	if err != nil {
		log.Errorln("analytics: setup failure:", err)
		return exitBrokerDown
	}
	defer s.Close()
	s.Run(ctx)
	s.Wait()
	return exitOK
}

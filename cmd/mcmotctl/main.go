// Command mcmotctl is the Control Plane CLI (spec.md §4.J): setup,
// start, stop, and signal operations against one pipeline.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/control"
)

func init() {
	formatter := &log.TextFormatter{}
	formatter.TimestampFormat = "01-02-2006 15:04:05"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)
	log.SetOutput(os.Stdout)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "setup":
		cmdSetup(os.Args[2:])
	case "start":
		cmdStart(os.Args[2:])
	case "stop":
		cmdStop(os.Args[2:])
	case "signal":
		cmdSignal(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mcmotctl <setup|start|stop|signal> [flags]")
}

func cmdSetup(args []string) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the setup config YAML")
	fs.Parse(args)

	cfg := control.NewSetupConfig(*configPath)
	if cfg == nil {
		os.Exit(2)
	}
	if err := control.Setup(cfg); err != nil {
		log.Errorln("setup failed:", err)
		os.Exit(3)
	}
	log.Infoln("setup complete for pipeline", cfg.Pipeline)
}

func cmdStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the pipeline config YAML")
	workerBinary := fs.String("worker", "mcmot-worker", "path to the mcmot-worker binary")
	pidDir := fs.String("pid-dir", "", "directory for pid files (default pids/)")
	fs.Parse(args)

	cfg := control.NewPipelineConfig(*configPath)
	if cfg == nil {
		os.Exit(2)
	}
	for _, entry := range cfg.Stages {
		if _, err := control.Start(*workerBinary, entry, *pidDir); err != nil {
			log.Errorln("start failed for stage", entry.Name, ":", err)
			os.Exit(3)
		}
	}
	log.Infoln("start complete for pipeline", cfg.Pipeline)
}

func cmdStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	stages := fs.String("stages", "", "comma-separated stage names to stop")
	pidDir := fs.String("pid-dir", "", "directory for pid files (default pids/)")
	fs.Parse(args)

	names := splitCSV(*stages)
	if len(names) == 0 {
		usage()
		os.Exit(2)
	}
	if err := control.Stop(names, *pidDir); err != nil {
		log.Errorln("stop encountered errors:", err)
		os.Exit(3)
	}
	log.Infoln("stop complete")
}

func cmdSignal(args []string) {
	fs := flag.NewFlagSet("signal", flag.ExitOnError)
	brokers := fs.String("brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	topic := fs.String("topic", "", "control topic (camera-<pipeline>-topic)")
	pipeline := fs.String("pipeline", "", "pipeline name")
	signalType := fs.String("signal", "", "START|STOP|HOLD|RESUME")
	fs.Parse(args)

	if *topic == "" || *pipeline == "" || *signalType == "" {
		usage()
		os.Exit(2)
	}

	producer, err := broker.NewProducer(&broker.Config{Brokers: splitCSV(*brokers)})
	if err != nil {
		log.Errorln("signal: broker unreachable:", err)
		os.Exit(3)
	}
	defer producer.Close()

	publisher := control.NewPublisher(producer, *topic)
	sig := control.Signal{Pipeline: *pipeline, Type: control.SignalType(*signalType)}
	if err := publisher.Send(sig); err != nil {
		log.Errorln("signal: send failed:", err)
		os.Exit(3)
	}
	log.Infof("sent %s to pipeline %s on topic %s", *signalType, *pipeline, *topic)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

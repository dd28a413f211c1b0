// Package controlhttp exposes the Control Plane's scripted/external
// control surface (spec.md §4.J): a small fiber app with a signal and a
// status endpoint, trimmed from jonoton-scout's http package (the
// login/dashboard/websocket surface that package also serves has no
// place here -- this is an operator API, not a viewer UI).
package controlhttp

import (
	"path/filepath"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	log "github.com/sirupsen/logrus"

	"github.com/jonoton/mcmot/broker"
	"github.com/jonoton/mcmot/control"
	"github.com/jonoton/mcmot/dir"
)

// Config configures the control HTTP server.
type Config struct {
	Listen         string `yaml:"listen"`
	ControlTopic   string `yaml:"control-topic"`
	PidDirectory   string `yaml:"pid-directory,omitempty"`
	LimitPerSecond int    `yaml:"limit-per-second,omitempty"`
}

func (c *Config) limitPerSecond() int {
	if c.LimitPerSecond <= 0 {
		return 100
	}
	return c.LimitPerSecond
}

func (c *Config) pidDirectory() string {
	if c.PidDirectory == "" {
		return control.PidDirDefault
	}
	return c.PidDirectory
}

// Server wraps a fiber.App exposing the control surface.
type Server struct {
	cfg       *Config
	app       *fiber.App
	publisher *control.Publisher
}

// NewServer wires a Server that publishes signals through producer.
func NewServer(cfg *Config, producer *broker.Producer) *Server {
	s := &Server{
		cfg:       cfg,
		app:       fiber.New(),
		publisher: control.NewPublisher(producer, cfg.ControlTopic),
	}
	s.routes()
	return s
}

type signalRequest struct {
	Signal    string `json:"signal"`
	LoopCount int    `json:"loop_count,omitempty"`
}

type statusResponse struct {
	Pipeline string   `json:"pipeline"`
	Running  []string `json:"running"`
}

func (s *Server) routes() {
	s.app.Use(limiter.New(limiter.Config{Max: s.cfg.limitPerSecond()}))

	s.app.Post("/pipelines/:name/signal", func(c *fiber.Ctx) error {
		pipeline := c.Params("name")
		var req signalRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		sig := control.Signal{
			Pipeline:  pipeline,
			Type:      control.SignalType(req.Signal),
			LoopCount: req.LoopCount,
		}
		if err := s.publisher.Send(sig); err != nil {
			log.Errorln("controlhttp: send signal:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})

	s.app.Get("/pipelines/:name/status", func(c *fiber.Ctx) error {
		pipeline := c.Params("name")
		running := s.runningStages()
		return c.JSON(statusResponse{Pipeline: pipeline, Running: running})
	})
}

// runningStages lists stages with at least one live PID file under the
// configured PID directory.
func (s *Server) runningStages() []string {
	files, err := dir.List(s.cfg.pidDirectory(), dir.RegexEndsWithBeforeExt("pid"))
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var stages []string
	for _, f := range files {
		name := f.Name()
		stage := name[:len(name)-len(filepath.Ext(name))]
		if idx := lastDash(stage); idx >= 0 {
			stage = stage[:idx]
		}
		if !seen[stage] {
			seen[stage] = true
			stages = append(stages, stage)
		}
	}
	return stages
}

func lastDash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return i
		}
	}
	return -1
}

// Listen starts the fiber app, blocking until it exits or errors.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Listen)
}

// Shutdown gracefully stops the fiber app.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

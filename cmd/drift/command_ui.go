package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"drift/internal/config"
	"drift/internal/logging"
	"drift/internal/mux"
	"drift/internal/terminal"
	"drift/internal/transport"
	"drift/internal/types"
	"drift/internal/ui"
	"drift/internal/workspace"
)

type UICommand struct {
	stderr     io.Writer
	loadConfig func() (config.Config, error)
	version    string
}

func NewUICommand(stderr io.Writer, loadConfig func() (config.Config, error), version string) *UICommand {
	return &UICommand{
		stderr:     stderr,
		loadConfig: loadConfig,
		version:    version,
	}
}

// Run starts the terminal workspace against a scripted in-memory host. The
// demo exercises the full state core without needing a reachable remote.
func (c *UICommand) Run(args []string) error {
	fs := flag.NewFlagSet("ui", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := openUILogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Info("ui starting", logging.F("version", c.version))

	registry, err := seedDemoWorkspace(cfg, logger)
	if err != nil {
		return err
	}
	return ui.Run(registry, ui.Options{
		PollInterval:      cfg.PollInterval(),
		ReconnectAttempts: cfg.ReconnectAttempts(),
		ReconnectDelay:    cfg.ReconnectDelay(),
	})
}

// openUILogger sends logs to a file so they do not tear the alternate
// screen.
func openUILogger(cfg config.Config) (logging.Logger, func(), error) {
	path, err := config.LogPath()
	if err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(file, logging.ParseLevel(cfg.LogLevel()))
	return logger, func() { _ = file.Close() }, nil
}

func seedDemoWorkspace(cfg config.Config, logger logging.Logger) (*workspace.Registry, error) {
	memory := transport.NewMemory()
	memory.AddHost("demo.drift.local", 22)
	now := time.Now().Add(-time.Hour)
	memory.PutFile("demo.drift.local", 22, "/srv/demo/main.go",
		"package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hello from drift\")\n}\n", now)
	memory.PutFile("demo.drift.local", 22, "/srv/demo/go.mod", "module demo\n\ngo 1.24\n", now)
	memory.PutFile("demo.drift.local", 22, "/srv/demo/docs/README.md", "# demo\n", now)

	conns := mux.NewManager(memory, cfg.Reconnect.Auto, logger)
	registry := workspace.NewRegistry(conns, terminal.NewRegistry(), logger)

	ctx := context.Background()
	profile := types.ConnectionProfile{
		ID:         "demo",
		Name:       "demo",
		Host:       "demo.drift.local",
		Port:       22,
		Username:   "dev",
		AuthMethod: types.AuthMethodKey,
		KeyPath:    "~/.ssh/id_ed25519",
	}
	session, err := registry.OpenSession(ctx, profile, "/srv/demo")
	if err != nil {
		return nil, err
	}
	if _, err := registry.ListDirectory(ctx, session.ID, "/srv/demo"); err != nil {
		return nil, err
	}
	if _, err := registry.OpenFile(ctx, session.ID, "/srv/demo/main.go"); err != nil {
		return nil, err
	}
	return registry, nil
}

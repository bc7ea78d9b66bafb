package main

import (
	"io"
	"os"

	"drift/internal/config"
	"drift/internal/store"
)

type commandRunner interface {
	Run(args []string) error
}

type storeFactory func(cfg config.Config) (store.Store, error)

type commandWiring struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.Config, error)
	openStore  storeFactory
	version    string
}

func defaultCommandWiring(stdout, stderr io.Writer) commandWiring {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Load,
		openStore:  openConfiguredStore,
		version:    buildVersion(),
	}
}

func openConfiguredStore(cfg config.Config) (store.Store, error) {
	profilesPath, err := config.ProfilesPath()
	if err != nil {
		return nil, err
	}
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, err
	}
	return store.Open(store.Paths{ProfilesPath: profilesPath, DBPath: dbPath}, cfg.StoreBackend())
}

func buildCommands(wiring commandWiring) map[string]commandRunner {
	return map[string]commandRunner{
		"profile": NewProfileCommand(wiring.stdout, wiring.stderr, wiring.loadConfig, wiring.openStore),
		"config":  NewConfigCommand(wiring.stdout, wiring.stderr, wiring.loadConfig),
		"ui":      NewUICommand(wiring.stderr, wiring.loadConfig, wiring.version),
	}
}

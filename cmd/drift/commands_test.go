package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"drift/internal/config"
	"drift/internal/store"
)

func testWiring(t *testing.T) (commandWiring, *bytes.Buffer) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	dir := t.TempDir()
	return commandWiring{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: func() (config.Config, error) { return config.Default(), nil },
		openStore: func(cfg config.Config) (store.Store, error) {
			return store.Open(store.Paths{ProfilesPath: filepath.Join(dir, "profiles.json")}, store.BackendFile)
		},
		version: "test",
	}, stdout
}

func TestBuildCommands(t *testing.T) {
	wiring, _ := testWiring(t)
	commands := buildCommands(wiring)
	for _, name := range []string{"profile", "config", "ui"} {
		if _, ok := commands[name]; !ok {
			t.Fatalf("command %q not wired", name)
		}
	}
}

func TestProfileAddAndList(t *testing.T) {
	wiring, stdout := testWiring(t)
	commands := buildCommands(wiring)

	err := commands["profile"].Run([]string{"add",
		"--id", "build",
		"--name", "build",
		"--host", "build.example.com",
		"--user", "dev",
		"--key", "~/.ssh/id_ed25519",
	})
	if err != nil {
		t.Fatalf("profile add: %v", err)
	}
	if !strings.Contains(stdout.String(), "added profile build") {
		t.Fatalf("add output: %q", stdout.String())
	}

	stdout.Reset()
	if err := commands["profile"].Run([]string{"list"}); err != nil {
		t.Fatalf("profile list: %v", err)
	}
	if !strings.Contains(stdout.String(), "build.example.com:22") {
		t.Fatalf("list output: %q", stdout.String())
	}

	stdout.Reset()
	if err := commands["profile"].Run([]string{"show", "build"}); err != nil {
		t.Fatalf("profile show: %v", err)
	}
	if !strings.Contains(stdout.String(), "auth:      key") {
		t.Fatalf("show output: %q", stdout.String())
	}

	if err := commands["profile"].Run([]string{"rm", "build"}); err != nil {
		t.Fatalf("profile rm: %v", err)
	}
	if err := commands["profile"].Run([]string{"rm", "build"}); err == nil {
		t.Fatalf("removing a missing profile must fail")
	}
}

func TestConfigDefaults(t *testing.T) {
	wiring, stdout := testWiring(t)
	commands := buildCommands(wiring)

	if err := commands["config"].Run([]string{"--defaults"}); err != nil {
		t.Fatalf("config: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "[logging]") || !strings.Contains(out, "[reconnect]") {
		t.Fatalf("toml output: %q", out)
	}

	stdout.Reset()
	if err := commands["config"].Run([]string{"--defaults", "--format", "json"}); err != nil {
		t.Fatalf("config json: %v", err)
	}
	if !strings.Contains(stdout.String(), "\"max_attempts\": 3") {
		t.Fatalf("json output: %q", stdout.String())
	}

	if err := commands["config"].Run([]string{"--format", "yaml"}); err == nil {
		t.Fatalf("unsupported format must fail")
	}
}

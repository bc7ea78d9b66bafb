package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"drift/internal/config"
	"drift/internal/store"
	"drift/internal/types"
)

type ProfileCommand struct {
	stdout     io.Writer
	stderr     io.Writer
	loadConfig func() (config.Config, error)
	openStore  storeFactory
}

func NewProfileCommand(stdout, stderr io.Writer, loadConfig func() (config.Config, error), openStore storeFactory) *ProfileCommand {
	return &ProfileCommand{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: loadConfig,
		openStore:  openStore,
	}
}

func (c *ProfileCommand) Run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: drift profile <list|add|rm|show|bookmark|unbookmark> [flags]")
	}
	profiles, closeStore, err := c.profiles()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	switch args[0] {
	case "list":
		return c.runList(ctx, profiles)
	case "add":
		return c.runAdd(ctx, profiles, args[1:])
	case "rm":
		return c.runRemove(ctx, profiles, args[1:])
	case "show":
		return c.runShow(ctx, profiles, args[1:])
	case "bookmark":
		return c.runBookmark(ctx, profiles, args[1:], true)
	case "unbookmark":
		return c.runBookmark(ctx, profiles, args[1:], false)
	default:
		return errors.New("unknown profile subcommand: " + args[0])
	}
}

func (c *ProfileCommand) profiles() (store.ProfileStore, func(), error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	s, err := c.openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s.Profiles(), func() { _ = s.Close() }, nil
}

func (c *ProfileCommand) runList(ctx context.Context, profiles store.ProfileStore) error {
	list, err := profiles.List(ctx)
	if err != nil {
		return err
	}
	printProfiles(c.stdout, list)
	return nil
}

func (c *ProfileCommand) runAdd(ctx context.Context, profiles store.ProfileStore, args []string) error {
	fs := flag.NewFlagSet("profile add", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	id := fs.String("id", "", "profile id")
	name := fs.String("name", "", "display name")
	host := fs.String("host", "", "remote host")
	port := fs.Int("port", 22, "ssh port")
	user := fs.String("user", "", "remote username")
	key := fs.String("key", "", "private key path (key auth)")
	password := fs.Bool("password", false, "use password auth instead of a key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	auth := types.AuthMethodKey
	if *password {
		auth = types.AuthMethodPassword
	}
	added, err := profiles.Add(ctx, types.ConnectionProfile{
		ID:         strings.TrimSpace(*id),
		Name:       strings.TrimSpace(*name),
		Host:       strings.TrimSpace(*host),
		Port:       *port,
		Username:   strings.TrimSpace(*user),
		AuthMethod: auth,
		KeyPath:    strings.TrimSpace(*key),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "added profile %s (%s@%s:%d)\n", added.ID, added.Username, added.Host, added.Port)
	return nil
}

func (c *ProfileCommand) runRemove(ctx context.Context, profiles store.ProfileStore, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: drift profile rm <id>")
	}
	if err := profiles.Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "removed profile %s\n", args[0])
	return nil
}

func (c *ProfileCommand) runShow(ctx context.Context, profiles store.ProfileStore, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: drift profile show <id>")
	}
	profile, ok, err := profiles.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrProfileNotFound
	}
	fmt.Fprintf(c.stdout, "id:        %s\n", profile.ID)
	fmt.Fprintf(c.stdout, "name:      %s\n", profile.Name)
	fmt.Fprintf(c.stdout, "host:      %s:%d\n", profile.Host, profile.Port)
	fmt.Fprintf(c.stdout, "user:      %s\n", profile.Username)
	fmt.Fprintf(c.stdout, "auth:      %s\n", profile.AuthMethod)
	if profile.KeyPath != "" {
		fmt.Fprintf(c.stdout, "key:       %s\n", profile.KeyPath)
	}
	if len(profile.RecentProjects) > 0 {
		fmt.Fprintf(c.stdout, "recent:    %s\n", strings.Join(profile.RecentProjects, ", "))
	}
	if len(profile.Bookmarks) > 0 {
		fmt.Fprintf(c.stdout, "bookmarks: %s\n", strings.Join(profile.Bookmarks, ", "))
	}
	return nil
}

func (c *ProfileCommand) runBookmark(ctx context.Context, profiles store.ProfileStore, args []string, add bool) error {
	if len(args) != 2 {
		if add {
			return errors.New("usage: drift profile bookmark <id> <path>")
		}
		return errors.New("usage: drift profile unbookmark <id> <path>")
	}
	if add {
		if err := profiles.AddBookmark(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "bookmarked %s on %s\n", args[1], args[0])
		return nil
	}
	if err := profiles.RemoveBookmark(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "removed bookmark %s from %s\n", args[1], args[0])
	return nil
}

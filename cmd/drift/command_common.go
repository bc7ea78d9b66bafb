package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"text/tabwriter"

	"drift/internal/types"
)

const version = "dev"

func printProfiles(output io.Writer, profiles []types.ConnectionProfile) {
	writer := tabwriter.NewWriter(output, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tHOST\tUSER\tAUTH")
	for _, profile := range profiles {
		fmt.Fprintf(writer, "%s\t%s\t%s:%d\t%s\t%s\n",
			profile.ID, profile.Name, profile.Host, profile.Port, profile.Username, profile.AuthMethod)
	}
	_ = writer.Flush()
}

func exitOnErr(label string, err error, stderr io.Writer) {
	if err == nil {
		return
	}
	fmt.Fprintf(stderr, "%s error: %v\n", label, err)
	os.Exit(1)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		var revision string
		var modified string
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				revision = setting.Value
			case "vcs.modified":
				modified = setting.Value
			}
		}
		if revision != "" {
			short := revision
			if len(short) > 12 {
				short = short[:12]
			}
			if modified == "true" {
				return version + "+" + short + "-dirty"
			}
			return version + "+" + short
		}
	}
	return version
}

// Command aigist serves the gist API and talks to a running server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"aigist/internal/config"
	mylog "aigist/internal/log"
	"aigist/internal/version"
)

const banner = `
     _____ _ _____ _     _
    |  _  |_|   __|_|___| |_
    |     | |  |  | |_ -|  _|
    |__|__|_|_____|_|___|_|
`

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aigist",
		Short:         "GitHub gist API with a local mirror and model-directed actions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $AIGIST_CONFIG or ~/.aigist/config.yaml)")

	root.AddGroup(
		&cobra.Group{ID: "server", Title: "Server:"},
		&cobra.Group{ID: "client", Title: "Client:"},
	)
	for _, c := range []*cobra.Command{serveCmd(), setupCmd(), checkCmd(), dbCmd()} {
		c.GroupID = "server"
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{gistsCmd(), chatCmd()} {
		c.GroupID = "client"
		root.AddCommand(c)
	}
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadConfig resolves the full server configuration, prompting on a terminal
// when required values are missing.
func loadConfig() (config.Config, error) {
	var p *config.Prompter
	if config.IsInteractive() {
		p = config.NewTerminalPrompter()
	}
	return config.Resolve(resolvedConfigPath(), p)
}

// clientConfig loads settings for commands that only talk to a running server.
func clientConfig() (config.Config, error) {
	if err := config.LoadAndApply(resolvedConfigPath()); err != nil {
		return config.Config{}, err
	}
	return config.FromEnv(os.Getenv)
}

func newLogger(cfg config.Config) *mylog.Logger {
	return mylog.New(mylog.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
}

func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
	fmt.Fprintf(w, "    %s\n\n", version.String())
}

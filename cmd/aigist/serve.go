package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"aigist/internal/config"
	"aigist/internal/server"
	"aigist/internal/store"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printBanner(out)
			cfg, err := loadConfig()
			if err != nil {
				reportConfigError(out, err)
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if err := runChecks(cmd.Context(), cfg, out); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s aigist listening on %s\n", color.GreenString("✓"), cfg.Addr)
			return server.Run(cmd.Context(), cfg, newLogger(cfg))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $AIGIST_ADDR or :8000)")
	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Prompt for required configuration and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolvedConfigPath()
			cfg, err := config.Resolve(path, config.NewTerminalPrompter())
			if err != nil {
				reportConfigError(cmd.OutOrStdout(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s configuration complete (%s, model %s)\n", color.GreenString("✓"), path, cfg.LLMModel)
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration and the mirror database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			printBanner(out)
			if err := config.LoadAndApply(resolvedConfigPath()); err != nil {
				return err
			}
			cfg, err := config.FromEnv(os.Getenv)
			if err != nil {
				return err
			}
			return runChecks(cmd.Context(), cfg, out)
		},
	}
}

// runChecks prints one ✓/✗ line per startup check and stops at the first failure.
func runChecks(ctx context.Context, cfg config.Config, out io.Writer) error {
	ok := color.GreenString("✓")
	fail := color.RedString("✗")

	if err := cfg.Validate(); err != nil {
		reportConfigError(out, err)
		return err
	}
	fmt.Fprintf(out, "%s required configuration present\n", ok)

	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(out, "%s database %s: %v\n", fail, cfg.DBPath, err)
		return err
	}
	defer st.Close()
	fmt.Fprintf(out, "%s database %s opened\n", ok, cfg.DBPath)

	if err := st.Check(ctx); err != nil {
		fmt.Fprintf(out, "%s %v\n", fail, err)
		return err
	}
	fmt.Fprintf(out, "%s the 'gists' table exists\n", ok)
	return nil
}

func reportConfigError(out io.Writer, err error) {
	var me *config.MissingError
	if errors.As(err, &me) {
		for _, k := range me.Keys {
			fmt.Fprintf(out, "%s %s is not set\n", color.RedString("✗"), k)
		}
		return
	}
	fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), err)
}

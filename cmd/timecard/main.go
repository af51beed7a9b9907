// ABOUTME: Entry point for the timecard server and its admin commands
// ABOUTME: Cobra root command wiring serve, bootstrap, hash-password and health

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/timecard/internal/config"
	"github.com/2389/timecard/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _   _                               _
 | |_(_)_ __ ___   ___  ___ __ _ _ __| |
 | __| | '_ ' _ \ / _ \/ __/ _' | '__/ _' |
 | |_| | | | | | |  __/ (_| (_| | | | (_| |
  \__|_|_| |_| |_|\___|\___\__,_|_|  \__,_|
`

var configFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timecard",
		Short:         "Employee time tracking server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "Config file path (also set via TIMECARD_CONFIG)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newBootstrapCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newHealthCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the resolved config file. A missing file is only an error
// when the path was given explicitly; otherwise defaults and env apply.
func loadConfig() (*config.Config, string, error) {
	path := config.Path(configFlag)
	explicit := configFlag != "" || os.Getenv(config.EnvConfigPath) != ""

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg, err = config.Default()
		if err != nil {
			return nil, "", fmt.Errorf("loading default config: %w", err)
		}
		return cfg, "(defaults)", nil
	}
	return nil, "", fmt.Errorf("loading config: %w", err)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runServe(ctx context.Context, out io.Writer) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", cfg.Database.Path)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Sessions:  %s", cfg.Sessions.Backend)
	if cfg.Sessions.Backend == config.BackendRedis {
		gray.Fprintf(out, " (%s)", cfg.Sessions.Redis.Addr)
	}
	fmt.Fprintln(out)
	if cfg.Server.Production {
		green.Fprint(out, "    ▶ ")
		yellow.Fprintln(out, "production mode")
	}
	fmt.Fprintln(out)

	logger.Info("starting timecard",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"session_backend", cfg.Sessions.Backend,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return runHealth(cmd.Context(), cmd.OutOrStdout(), healthURL(cfg.Server.HTTPAddr))
		},
	}
}

// healthURL turns a listen address into a dialable URL. A bare ":port"
// listens on every interface, so the check goes to localhost.
func healthURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return fmt.Sprintf("http://%s/health", addr)
}

func runHealth(ctx context.Context, out io.Writer, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Fprintln(out, "healthy")
	return nil
}

// Package main is the entry point for the concierge CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/casahub/concierge/internal/config"
	"github.com/casahub/concierge/internal/hub"
	"github.com/casahub/concierge/internal/logging"
	"github.com/casahub/concierge/internal/mcp"
	"github.com/casahub/concierge/internal/service"
	"github.com/casahub/concierge/internal/tool"
	"github.com/casahub/concierge/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "concierge",
		Short:         "A self-hosted conversational sales assistant with smart-home tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), initCmd(), configCmd(), mcpCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("concierge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the concierge gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			a, err := app.New(cfgPath, version)
			if err != nil {
				return err
			}
			// service.Run degrades to a plain foreground run when not
			// launched by a service manager.
			return service.Run(a, cfgPath)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Printf("Configuration OK (listen: %s, model: %s)\n", cfg.Server.Listen, cfg.Provider.Model)
			return nil
		},
	})
	return cmd
}

// mcpCmd serves the hub tools over MCP stdio so external clients can drive
// the smart-home hub directly. Logs go to stderr; stdout is the transport.
func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the hub tools over MCP stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := logging.New("info")
			reg := tool.NewRegistry()
			if err := hub.RegisterTools(reg, hub.NewStore(hub.DefaultState())); err != nil {
				return err
			}
			return mcp.NewServer(version, reg, logger).ServeStdio()
		},
	}
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart>",
		Short:     "Manage concierge as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}
			abs, err := filepath.Abs(cfgPath)
			if err != nil {
				return err
			}
			return service.Control(nopRunner{}, abs, args[0])
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

// nopRunner satisfies service.Runner for control actions, which only talk
// to the service manager and never start the application.
type nopRunner struct{}

func (nopRunner) Run() error { return nil }
func (nopRunner) Shutdown()  {}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/concierge/concierge.yaml → ./concierge.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "concierge", "concierge.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "concierge", "concierge.yaml"))
	}

	candidates = append(candidates, "concierge.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v); run `concierge init` to create one", candidates)
}

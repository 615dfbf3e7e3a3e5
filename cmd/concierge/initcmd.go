package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/casahub/concierge/internal/config"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd walks the user through an interactive form and writes a starter
// configuration file.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")

			if !force {
				if _, err := os.Stat(out); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", out)
				}
			}

			cfg, err := runInitForm()
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			// 0600: the file may hold an admin token or API key.
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", out)
			fmt.Printf("Start the gateway with: concierge start --config %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "concierge.yaml", "Where to write the configuration")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func runInitForm() (*config.Config, error) {
	cfg := config.Default()

	apiKeyEnv := cfg.Provider.APIKeyEnv
	archive := cfg.Archive.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("Address the HTTP gateway binds to").
				Validate(validateListen).
				Value(&cfg.Server.Listen),
			huh.NewInput().
				Title("Provider base URL").
				Description("Root of an OpenAI-compatible API").
				Value(&cfg.Provider.BaseURL),
			huh.NewInput().
				Title("Model").
				Validate(required("model")).
				Value(&cfg.Provider.Model),
			huh.NewInput().
				Title("API key environment variable").
				Description("The key itself is read from this variable at startup").
				Validate(required("api key environment variable")).
				Value(&apiKeyEnv),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Admin token").
				Description("Guards /api endpoints; leave empty to disable them").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Server.AdminToken),
			huh.NewConfirm().
				Title("Archive finished conversations to SQLite?").
				Value(&archive),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&cfg.Log.Level),
		),
	)

	if err := form.Run(); err != nil {
		return nil, err
	}

	cfg.Provider.APIKeyEnv = apiKeyEnv
	cfg.Archive.Enabled = archive
	if !archive {
		cfg.Archive.Path = ""
	}
	return cfg, nil
}

func validateListen(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("must be host:port")
	}
	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// Package service integrates concierge with the platform service manager
// (systemd, launchd, Windows services) via kardianos/service.
package service

import (
	"fmt"

	"github.com/kardianos/service"
)

// Runner is the application lifecycle the service manager drives.
type Runner interface {
	// Run blocks until the application exits.
	Run() error
	// Shutdown requests a graceful stop and unblocks Run.
	Shutdown()
}

// program adapts a Runner to service.Interface.
type program struct {
	runner Runner
	errCh  chan error
}

func (p *program) Start(service.Service) error {
	go func() { p.errCh <- p.runner.Run() }()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.runner.Shutdown()
	return <-p.errCh
}

// newService builds the platform service handle.
func newService(r Runner, configPath string) (service.Service, error) {
	args := []string{"start"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return service.New(&program{runner: r, errCh: make(chan error, 1)}, &service.Config{
		Name:        "concierge",
		DisplayName: "Concierge Agent",
		Description: "Conversational sales-assistant agent service",
		Arguments:   args,
	})
}

// Run executes the application under service-manager control when launched
// by one, or in the foreground otherwise.
func Run(r Runner, configPath string) error {
	svc, err := newService(r, configPath)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	return svc.Run()
}

// Control applies a service action: install, uninstall, start, or stop.
func Control(r Runner, configPath, action string) error {
	svc, err := newService(r, configPath)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service: %s: %w", action, err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateRequester(); err != nil {
		return err
	}
	if err := c.validateDispatcher(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Host == "" {
		return errors.New("server.host must be set")
	}
	if strings.ContainsAny(c.Server.Host, "/?# ") {
		return fmt.Errorf("server.host %q must be a host[:port] without path", c.Server.Host)
	}
	return nil
}

func (c *Config) validateRequester() error {
	if c.Requester.Deadline <= 0 {
		return errors.New("requester.deadline must be positive")
	}
	return nil
}

func (c *Config) validateDispatcher() error {
	if c.Dispatcher.CommandTimeout < 0 {
		return errors.New("dispatcher.command_timeout must not be negative")
	}
	if c.Output.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.Output.PublicBaseURL); err != nil {
			return fmt.Errorf("output.public_base_url: %w", err)
		}
	}
	seen := make(map[string]struct{}, len(c.Dispatcher.Jobs))
	for i, job := range c.Dispatcher.Jobs {
		if job.EntryPoint == "" {
			return fmt.Errorf("dispatcher.jobs[%d].entry_point must be set", i)
		}
		if job.Command == "" {
			return fmt.Errorf("dispatcher.jobs[%d].command must be set", i)
		}
		if _, dup := seen[job.EntryPoint]; dup {
			return fmt.Errorf("dispatcher.jobs[%d]: entry point %s configured twice", i, job.EntryPoint)
		}
		seen[job.EntryPoint] = struct{}{}
		switch job.OutputType {
		case "DigitalDocument", "MediaObject", "AudioObject":
		default:
			return fmt.Errorf("dispatcher.jobs[%d].output_type %q must be DigitalDocument, MediaObject or AudioObject", i, job.OutputType)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}

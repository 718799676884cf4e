package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRequester()
	c.normalizeDispatcher()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	host := strings.TrimSpace(c.Server.Host)
	switch {
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
		c.Server.Secure = true
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}
	c.Server.Host = strings.TrimRight(host, "/")
	c.Server.HTTPPath = normalizeURLPath(c.Server.HTTPPath, defaultHTTPPath)
	c.Server.WebsocketPath = normalizeURLPath(c.Server.WebsocketPath, defaultWebsocketPath)
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
}

func normalizeURLPath(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Output.PublicBaseURL = strings.TrimSpace(c.Output.PublicBaseURL)
	return nil
}

func (c *Config) normalizeRequester() {
	if c.Requester.PollInterval <= 0 {
		c.Requester.PollInterval = defaultPollInterval
	}
	if c.Requester.PollMaxInterval < c.Requester.PollInterval {
		c.Requester.PollMaxInterval = c.Requester.PollInterval
	}
	if c.Requester.PollMultiplier < 1 {
		c.Requester.PollMultiplier = 1
	}
}

func (c *Config) normalizeDispatcher() {
	if c.Dispatcher.ReconnectInterval <= 0 {
		c.Dispatcher.ReconnectInterval = defaultReconnectInterval
	}
	if c.Dispatcher.MaxReconnectInterval < c.Dispatcher.ReconnectInterval {
		c.Dispatcher.MaxReconnectInterval = c.Dispatcher.ReconnectInterval
	}
	for i := range c.Dispatcher.Jobs {
		job := &c.Dispatcher.Jobs[i]
		job.Name = strings.TrimSpace(job.Name)
		job.EntryPoint = strings.TrimSpace(job.EntryPoint)
		job.Command = strings.TrimSpace(job.Command)
		job.OutputSlot = strings.TrimSpace(job.OutputSlot)
		job.OutputFormat = strings.TrimSpace(job.OutputFormat)
		if job.OutputFormat == "" {
			job.OutputFormat = defaultOutputFormat
		}
		job.OutputType = strings.TrimSpace(job.OutputType)
		if job.OutputType == "" {
			job.OutputType = defaultOutputType
		}
		if job.Name == "" {
			job.Name = job.EntryPoint
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

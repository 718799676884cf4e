package config

const (
	defaultHost                 = "localhost:4000"
	defaultHTTPPath             = "/graphql"
	defaultWebsocketPath        = "/graphql"
	defaultRequestTimeout       = 30
	defaultDownloadDir          = "~/.local/share/jobgraph/downloads"
	defaultOutputDir            = "~/.local/share/jobgraph/output"
	defaultStateDir             = "~/.local/share/jobgraph/state"
	defaultLogDir               = "~/.local/share/jobgraph/logs"
	defaultPollInterval         = 2
	defaultPollMaxInterval      = 30
	defaultPollMultiplier       = 1.5
	defaultDeadline             = 3600
	defaultReconnectInterval    = 2
	defaultMaxReconnectInterval = 60
	defaultCommandTimeout       = 1800
	defaultOutputType           = "DigitalDocument"
	defaultOutputFormat         = "application/octet-stream"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Host:           defaultHost,
			HTTPPath:       defaultHTTPPath,
			WebsocketPath:  defaultWebsocketPath,
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			OutputDir:   defaultOutputDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Requester: Requester{
			PollInterval:    defaultPollInterval,
			PollMaxInterval: defaultPollMaxInterval,
			PollMultiplier:  defaultPollMultiplier,
			Deadline:        defaultDeadline,
		},
		Dispatcher: Dispatcher{
			ReconnectInterval:    defaultReconnectInterval,
			MaxReconnectInterval: defaultMaxReconnectInterval,
			CommandTimeout:       defaultCommandTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

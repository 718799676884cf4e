package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath names the environment variable that selects the config file
// when no explicit path is given.
const EnvConfigPath = "JOBGRAPH_CONFIG"

// Server describes how to reach the remote store.
type Server struct {
	Host           string `toml:"host"`
	Secure         bool   `toml:"secure"`
	HTTPPath       string `toml:"http_path"`
	WebsocketPath  string `toml:"ws_path"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Paths contains local directories used by the dispatcher and CLI.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	OutputDir   string `toml:"output_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Output describes where produced artifacts are published.
type Output struct {
	PublicBaseURL string `toml:"public_base_url"`
}

// Requester contains polling settings for job requests.
type Requester struct {
	PollInterval    int     `toml:"poll_interval"`
	PollMaxInterval int     `toml:"poll_max_interval"`
	PollMultiplier  float64 `toml:"poll_multiplier"`
	Deadline        int     `toml:"deadline"`
}

// DispatchJob binds one EntryPoint subscription to a processing command.
//
// Command is split on whitespace; any {slot} placeholder inside an argument
// is replaced with the local path of a node-reference input or the value of a
// literal input. {output_path} is replaced with the local output path.
type DispatchJob struct {
	Name         string `toml:"name"`
	EntryPoint   string `toml:"entry_point"`
	Command      string `toml:"command"`
	OutputSlot   string `toml:"output_slot"`
	OutputFormat string `toml:"output_format"`
	OutputType   string `toml:"output_type"`
}

// Dispatcher contains worker settings.
type Dispatcher struct {
	ReconnectInterval    int           `toml:"reconnect_interval"`
	MaxReconnectInterval int           `toml:"max_reconnect_interval"`
	CommandTimeout       int           `toml:"command_timeout"`
	FailOnInvalidBinding bool          `toml:"fail_on_invalid_binding"`
	Jobs                 []DispatchJob `toml:"jobs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jobgraph.
//
// Configuration sections by subsystem:
//   - Server: remote store host and endpoint paths
//   - Paths: download, output, state and log directories
//   - Output: public URL prefix for produced artifacts
//   - Requester: job status polling cadence and deadline
//   - Dispatcher: reconnect backoff, command timeout and EntryPoint jobs
//   - Logging: log format and level
type Config struct {
	Server     Server     `toml:"server"`
	Paths      Paths      `toml:"paths"`
	Output     Output     `toml:"output"`
	Requester  Requester  `toml:"requester"`
	Dispatcher Dispatcher `toml:"dispatcher"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jobgraph/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. The second and third results report the
// resolved path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jobgraph.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the local directories the dispatcher writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HTTPEndpoint returns the request/response endpoint URL.
func (c *Config) HTTPEndpoint() string {
	scheme := "http"
	if c.Server.Secure {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: c.Server.Host, Path: c.Server.HTTPPath}).String()
}

// WebsocketEndpoint returns the duplex subscription endpoint URL.
func (c *Config) WebsocketEndpoint() string {
	scheme := "ws"
	if c.Server.Secure {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: c.Server.Host, Path: c.Server.WebsocketPath}).String()
}

// RequestTimeout returns the per-call timeout for the request/response channel.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// PublicURL maps a path relative to Paths.OutputDir onto Output.PublicBaseURL.
func (c *Config) PublicURL(relative string) string {
	base := strings.TrimRight(c.Output.PublicBaseURL, "/")
	rel := strings.TrimLeft(filepath.ToSlash(relative), "/")
	if base == "" {
		return "file://" + path.Join(filepath.ToSlash(c.Paths.OutputDir), rel)
	}
	return base + "/" + rel
}

// Job returns the dispatcher job bound to the named EntryPoint or job name.
func (c *Config) Job(nameOrEntryPoint string) (DispatchJob, bool) {
	key := strings.TrimSpace(nameOrEntryPoint)
	for _, job := range c.Dispatcher.Jobs {
		if job.Name == key || job.EntryPoint == key {
			return job, true
		}
	}
	return DispatchJob{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

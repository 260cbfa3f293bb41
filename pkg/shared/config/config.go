package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config holds the full agent configuration loaded from YAML.
type Config struct {
	Agent      Agent      `yaml:"agent"`
	HTTPClient HTTPClient `yaml:"http_client"`
	GitClient  GitClient  `yaml:"git_client"`
	Scanners   Scanners   `yaml:"scanners"`
	Logger     Logger     `yaml:"logger"`
}

// Agent holds identity and scheduling settings for the agent loop.
type Agent struct {
	ConsoleURL        string        `yaml:"console_url"`
	Name              string        `yaml:"name"`
	IdentityFile      string        `yaml:"identity_file"`
	WorkspaceDir      string        `yaml:"workspace_dir"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	// RegisterMaxElapsed bounds the startup registration retry loop.
	// Zero means retry until the process is stopped.
	RegisterMaxElapsed time.Duration `yaml:"register_max_elapsed"`
}

// HTTPClient holds settings for the resty client talking to the console.
type HTTPClient struct {
	Debug            bool          `yaml:"debug"`
	RetryCount       int           `yaml:"retry_count"`
	RetryWaitTime    time.Duration `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `yaml:"retry_max_wait_time"`
	Timeout          time.Duration `yaml:"timeout"`
	InsecureTLS      bool          `yaml:"insecure_tls"`
}

// GitClient holds repository fetch settings.
type GitClient struct {
	Depth    int           `yaml:"depth"`
	Timeout  time.Duration `yaml:"timeout"`
	AuthType string        `yaml:"auth_type"` // "", "http" or "ssh-key"
	Username string        `yaml:"username"`
	Token    string        `yaml:"token"`
	SSHKey   string        `yaml:"ssh_key"`
}

// Scanners holds external scanner invocation settings.
type Scanners struct {
	Timeout time.Duration `yaml:"timeout"`
	// Paths overrides the executable path per scanner name.
	Paths map[string]string `yaml:"paths"`
}

type Logger struct {
	Level      string `yaml:"level"`
	JSONFormat bool   `yaml:"json_format"`
}

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPollInterval      = 5 * time.Second
	DefaultHTTPRetryCount    = 3
	DefaultHTTPRetryWaitTime = 1 * time.Second
	DefaultHTTPRetryMaxWait  = 30 * time.Second
	DefaultHTTPTimeout       = 30 * time.Second
	DefaultGitTimeout        = 5 * time.Minute
	DefaultScannerTimeout    = 10 * time.Minute
)

// NewDefault returns a Config populated with defaults, suitable when no
// config file is present.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with their default values.
func ApplyDefaults(cfg *Config) {
	cfg.Agent.HeartbeatInterval = SetThen(cfg.Agent.HeartbeatInterval, DefaultHeartbeatInterval)
	cfg.Agent.PollInterval = SetThen(cfg.Agent.PollInterval, DefaultPollInterval)
	cfg.Agent.IdentityFile = SetThen(cfg.Agent.IdentityFile, defaultIdentityFile())
	cfg.Agent.WorkspaceDir = SetThen(cfg.Agent.WorkspaceDir, os.TempDir())
	cfg.HTTPClient.RetryCount = SetThen(cfg.HTTPClient.RetryCount, DefaultHTTPRetryCount)
	cfg.HTTPClient.RetryWaitTime = SetThen(cfg.HTTPClient.RetryWaitTime, DefaultHTTPRetryWaitTime)
	cfg.HTTPClient.RetryMaxWaitTime = SetThen(cfg.HTTPClient.RetryMaxWaitTime, DefaultHTTPRetryMaxWait)
	cfg.HTTPClient.Timeout = SetThen(cfg.HTTPClient.Timeout, DefaultHTTPTimeout)
	cfg.GitClient.Timeout = SetThen(cfg.GitClient.Timeout, DefaultGitTimeout)
	cfg.GitClient.Depth = SetThen(cfg.GitClient.Depth, 1)
	cfg.Scanners.Timeout = SetThen(cfg.Scanners.Timeout, DefaultScannerTimeout)
	cfg.Logger.Level = SetThen(cfg.Logger.Level, "INFO")
}

func defaultIdentityFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "scanio-agent.yaml"
	}
	return filepath.Join(home, ".scanio", "agent.yaml")
}

// LoadConfig reads a YAML config file and applies defaults. A missing
// file is not an error; defaults are used instead.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if err := LoadYAML(configPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadYAML decodes a YAML file into data.
func LoadYAML(configPath string, data interface{}) error {
	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return fmt.Errorf("failed to decode %q: %w", configPath, err)
	}
	return nil
}

// ValidateConfig checks the configuration for invalid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration object is nil")
	}
	if cfg.HTTPClient.RetryCount < 0 || cfg.HTTPClient.RetryCount > 20 {
		return fmt.Errorf("http_client.retry_count must be between 0 and 20: %d", cfg.HTTPClient.RetryCount)
	}
	if cfg.Agent.HeartbeatInterval <= 0 {
		return fmt.Errorf("agent.heartbeat_interval must be positive")
	}
	if cfg.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	switch cfg.GitClient.AuthType {
	case "", "http", "ssh-key":
	default:
		return fmt.Errorf("git_client.auth_type must be one of '', 'http', 'ssh-key': %q", cfg.GitClient.AuthType)
	}
	return nil
}

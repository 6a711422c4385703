// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ServerConfig describes the editor server process to supervise.
type ServerConfig struct {
	// Path is the root of the server installation. The platform launch script
	// is resolved underneath it unless ScriptPath overrides it.
	Path string `mapstructure:"path" yaml:"path"`
	// ScriptPath, when set, is used verbatim as the executable to spawn.
	ScriptPath string `mapstructure:"script_path" yaml:"script_path"`
	// AgentFolder is the scratch user-data directory handed to the server.
	AgentFolder string `mapstructure:"agent_folder" yaml:"agent_folder"`
	// Workspace is the folder the editor opens after connecting.
	Workspace string `mapstructure:"workspace" yaml:"workspace"`
	// ExtraArgs are appended after the fixed --browser/--driver arguments.
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args"`
	// DiscoveryTimeout bounds the wait for the endpoint announcement.
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout" yaml:"discovery_timeout"`
}

// BrowserConfig controls the browser side of a session.
type BrowserConfig struct {
	Engine   string `mapstructure:"engine" yaml:"engine"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	// RemoteScheme is the URI scheme used in the folder query parameter.
	RemoteScheme string `mapstructure:"remote_scheme" yaml:"remote_scheme"`
	// RemotePort is the authority port in the folder query parameter.
	RemotePort int `mapstructure:"remote_port" yaml:"remote_port"`
	// NavigationTimeout bounds the initial page load.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// EngineChromium is the only engine a CDP-backed session can drive.
const EngineChromium = "chromium"

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pagedriver")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("server.discovery_timeout", time.Minute)

	v.SetDefault("browser.engine", EngineChromium)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.remote_scheme", "vscode-remote")
	v.SetDefault("browser.remote_port", 9888)
	v.SetDefault("browser.navigation_timeout", 90*time.Second)
}

// Default returns a Config carrying only the default values.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from the optional file path, the environment
// (PAGEDRIVER_ prefix) and the defaults, and returns a validated Config.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pagedriver")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEDRIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in the filesystem paths.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Server.Path, &c.Server.ScriptPath, &c.Server.AgentFolder, &c.Server.Workspace} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.DiscoveryTimeout <= 0 {
		return fmt.Errorf("server.discovery_timeout must be positive, got %s", c.Server.DiscoveryTimeout)
	}
	if c.Browser.RemotePort <= 0 || c.Browser.RemotePort > 65535 {
		return fmt.Errorf("browser.remote_port out of range: %d", c.Browser.RemotePort)
	}
	switch c.Browser.Engine {
	case EngineChromium:
	case "webkit", "firefox":
		return fmt.Errorf("browser.engine %q is not supported by the CDP backend; only %q is", c.Browser.Engine, EngineChromium)
	default:
		return fmt.Errorf("unknown browser.engine %q", c.Browser.Engine)
	}
	return nil
}

// Package config loads settings from defaults, a config file, the
// environment and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	taskerrors "sjsage522/autoread/pkg/errors"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	// AppDir is the per-user config directory under ~/.config
	AppDir = "linuxdo-autoread"
	// DefaultConfigFile is written by --init-config when no path is given
	DefaultConfigFile = "config.json"
	// DefaultMaxTopics caps the topics read in one run
	DefaultMaxTopics = 30
)

// Config represents the application configuration
type Config struct {
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	BrowseEnabled bool          `mapstructure:"browse_enabled"`
	MaxTopics     int           `mapstructure:"max_topics"`
	Every         time.Duration `mapstructure:"every"`
	LogLevel      string        `mapstructure:"log_level"`
	LogFile       string        `mapstructure:"log_file"`

	Browse        BrowseConfig        `mapstructure:"browse"`
	Site          SiteConfig          `mapstructure:"site"`
	Browser       BrowserConfig       `mapstructure:"browser"`
	Visited       VisitedConfig       `mapstructure:"visited"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// BrowseConfig tunes topic reading
type BrowseConfig struct {
	LikeProbability      float64       `mapstructure:"like_probability"`
	MaxScrollTimes       int           `mapstructure:"max_scroll_times"`
	ScrollDistanceMin    int           `mapstructure:"scroll_distance_min"`
	ScrollDistanceMax    int           `mapstructure:"scroll_distance_max"`
	ScrollWaitMin        time.Duration `mapstructure:"scroll_wait_min"`
	ScrollWaitMax        time.Duration `mapstructure:"scroll_wait_max"`
	EarlyExitProbability float64       `mapstructure:"early_exit_probability"`
}

// SiteConfig holds the forum URLs
type SiteConfig struct {
	HomeURL    string `mapstructure:"home_url"`
	LatestURL  string `mapstructure:"latest_url"`
	LoginURL   string `mapstructure:"login_url"`
	ConnectURL string `mapstructure:"connect_url"`
}

// BrowserConfig configures the launched browser
type BrowserConfig struct {
	// RemoteURL attaches to a running browser instead of launching one
	RemoteURL    string        `mapstructure:"remote_url"`
	Headless     bool          `mapstructure:"headless"`
	Proxy        string        `mapstructure:"proxy"`
	UserAgent    string        `mapstructure:"user_agent"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// VisitedConfig selects where visited topics are remembered between runs
type VisitedConfig struct {
	// Backend is "", "file", "memory" or "memcache"
	Backend      string        `mapstructure:"backend"`
	Path         string        `mapstructure:"path"`
	MemcacheAddr string        `mapstructure:"memcache_addr"`
	Key          string        `mapstructure:"key"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// NotificationsConfig configures the push channels
type NotificationsConfig struct {
	Title        string           `mapstructure:"title"`
	IncludeStats bool             `mapstructure:"include_stats"`
	StatsFormat  string           `mapstructure:"stats_format"` // "markdown" or "html"
	Gotify       GotifyConfig     `mapstructure:"gotify"`
	ServerChan   ServerChanConfig `mapstructure:"server_chan"`
	Redis        RedisConfig      `mapstructure:"redis"`
}

// GotifyConfig is skipped unless both fields are set
type GotifyConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// ServerChanConfig is skipped unless PushKey is set
type ServerChanConfig struct {
	PushKey  string        `mapstructure:"push_key"`
	RetryMin time.Duration `mapstructure:"retry_min"`
	RetryMax time.Duration `mapstructure:"retry_max"`
}

// RedisConfig is skipped unless Addr is set
type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	DB     int    `mapstructure:"db"`
	Stream string `mapstructure:"stream"`
	MaxLen int    `mapstructure:"max_len"`
}

// LoadOptions carries the flags that are not bound to a key directly
type LoadOptions struct {
	// ConfigFile is read instead of searching the default locations
	ConfigFile string
	NoBrowse   bool
	Debug      bool
}

var envBindings = map[string][]string{
	"username":                           {"LINUXDO_USERNAME", "USERNAME"},
	"password":                           {"LINUXDO_PASSWORD", "PASSWORD"},
	"max_topics":                         {"MAX_TOPICS"},
	"every":                              {"EVERY"},
	"log_level":                          {"LOG_LEVEL"},
	"log_file":                           {"LOG_FILE"},
	"browse.like_probability":            {"LIKE_PROBABILITY"},
	"browse.max_scroll_times":            {"MAX_SCROLL_TIMES"},
	"browser.headless":                   {"HEADLESS"},
	"browser.proxy":                      {"BROWSER_PROXY"},
	"browser.user_agent":                 {"BROWSER_USER_AGENT"},
	"browser.remote_url":                 {"BROWSER_REMOTE_URL"},
	"visited.backend":                    {"VISITED_BACKEND"},
	"visited.path":                       {"VISITED_PATH"},
	"visited.memcache_addr":              {"MEMCACHE_ADDR"},
	"notifications.stats_format":         {"STATS_FORMAT"},
	"notifications.gotify.url":           {"GOTIFY_URL"},
	"notifications.gotify.token":         {"GOTIFY_TOKEN"},
	"notifications.server_chan.push_key": {"SC3_PUSH_KEY"},
	"notifications.redis.addr":           {"REDIS_ADDR"},
	"notifications.redis.db":             {"REDIS_DB"},
	"notifications.redis.stream":         {"REDIS_STREAM"},
}

var flagBindings = map[string]string{
	"max_topics":       "max-topics",
	"browser.headless": "headless",
	"every":            "every",
}

// New returns a viper instance with defaults and environment bindings
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for key, envs := range envBindings {
		// BindEnv only fails without a key
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// SetDefaults registers every default value on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("browse_enabled", true)
	v.SetDefault("max_topics", DefaultMaxTopics)
	v.SetDefault("every", "0s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("browse.like_probability", 0.3)
	v.SetDefault("browse.max_scroll_times", 10)
	v.SetDefault("browse.scroll_distance_min", 550)
	v.SetDefault("browse.scroll_distance_max", 650)
	v.SetDefault("browse.scroll_wait_min", "2s")
	v.SetDefault("browse.scroll_wait_max", "4s")
	v.SetDefault("browse.early_exit_probability", 0.1)

	v.SetDefault("site.home_url", "https://linux.do/")
	v.SetDefault("site.latest_url", "https://linux.do/latest")
	v.SetDefault("site.login_url", "https://linux.do/login")
	v.SetDefault("site.connect_url", "https://connect.linux.do/")

	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.proxy", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.timeout", "10s")

	v.SetDefault("visited.backend", "")
	v.SetDefault("visited.path", "visited_topics.txt")
	v.SetDefault("visited.memcache_addr", "localhost:11211")
	v.SetDefault("visited.key", "autoread:visited")
	v.SetDefault("visited.ttl", "720h")

	v.SetDefault("notifications.title", "LINUX DO")
	v.SetDefault("notifications.include_stats", false)
	v.SetDefault("notifications.stats_format", "markdown")
	v.SetDefault("notifications.gotify.url", "")
	v.SetDefault("notifications.gotify.token", "")
	v.SetDefault("notifications.server_chan.push_key", "")
	v.SetDefault("notifications.server_chan.retry_min", "180s")
	v.SetDefault("notifications.server_chan.retry_max", "360s")
	v.SetDefault("notifications.redis.addr", "")
	v.SetDefault("notifications.redis.db", 0)
	v.SetDefault("notifications.redis.stream", "autoread")
	v.SetDefault("notifications.redis.max_len", 1000)
}

// BindFlags binds the command line flags that map onto config keys
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagBindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file, applies overrides and decodes the result
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	if err := readFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	if raw, ok := os.LookupEnv("BROWSE_ENABLED"); ok {
		v.Set("browse_enabled", ParseBrowseEnabled(raw))
	}
	if opts.NoBrowse {
		v.Set("browse_enabled", false)
	}
	if opts.Debug {
		v.Set("log_level", "debug")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, taskerrors.NewConfiguration("decode config", err)
	}
	return &cfg, nil
}

// ParseBrowseEnabled treats false, 0 and off as disabled, anything else as enabled
func ParseBrowseEnabled(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "false", "0", "off":
		return false
	default:
		return true
	}
}

func readFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return taskerrors.NewConfiguration("read config "+path, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(".")
	if dir, err := UserConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return taskerrors.NewConfiguration("read config", err)
		}
	}
	return nil
}

// UserConfigDir returns ~/.config/linuxdo-autoread
func UserConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppDir), nil
}

// Validate checks that a run can start
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return taskerrors.NewConfiguration("LINUXDO_USERNAME and LINUXDO_PASSWORD must be set", nil)
	}
	if c.MaxTopics < 0 {
		return taskerrors.NewConfiguration(fmt.Sprintf("max_topics must not be negative, got %d", c.MaxTopics), nil)
	}
	if c.Browse.LikeProbability < 0 || c.Browse.LikeProbability > 1 {
		return taskerrors.NewConfiguration("browse.like_probability must be within [0, 1]", nil)
	}
	if c.Browse.ScrollDistanceMin > c.Browse.ScrollDistanceMax {
		return taskerrors.NewConfiguration("browse.scroll_distance_min exceeds scroll_distance_max", nil)
	}
	if c.Browse.ScrollWaitMin > c.Browse.ScrollWaitMax {
		return taskerrors.NewConfiguration("browse.scroll_wait_min exceeds scroll_wait_max", nil)
	}
	switch c.Visited.Backend {
	case "", "file", "memory", "memcache":
	default:
		return taskerrors.NewConfiguration("unknown visited.backend "+c.Visited.Backend, nil)
	}
	switch c.Notifications.StatsFormat {
	case "", "markdown", "html":
	default:
		return taskerrors.NewConfiguration("unknown notifications.stats_format "+c.Notifications.StatsFormat, nil)
	}
	return nil
}

// WriteDefault writes the default configuration to path. The format follows
// the extension. An existing file is left untouched.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "json", "yaml", "yml", "toml":
	default:
		return taskerrors.NewConfiguration("config file must end in .json, .yaml, .yml or .toml: "+path, nil)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return taskerrors.NewConfiguration("create config directory", err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return taskerrors.NewConfiguration("write config "+path, err)
	}
	return nil
}

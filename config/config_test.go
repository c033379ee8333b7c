package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	taskerrors "sjsage522/autoread/pkg/errors"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every bound variable; viper ignores empty values
func clearEnv(t *testing.T) {
	t.Helper()
	for _, envs := range envBindings {
		for _, env := range envs {
			t.Setenv(env, "")
		}
	}
	t.Setenv("BROWSE_ENABLED", "")
	os.Unsetenv("BROWSE_ENABLED")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-topics", DefaultMaxTopics, "")
	flags.Bool("headless", true, "")
	flags.Duration("every", 0, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)

	assert.True(t, cfg.BrowseEnabled)
	assert.Equal(t, DefaultMaxTopics, cfg.MaxTopics)
	assert.Equal(t, 30, DefaultMaxTopics)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0.3, cfg.Browse.LikeProbability)
	assert.Equal(t, 10, cfg.Browse.MaxScrollTimes)
	assert.Equal(t, 550, cfg.Browse.ScrollDistanceMin)
	assert.Equal(t, 650, cfg.Browse.ScrollDistanceMax)
	assert.Equal(t, 2*time.Second, cfg.Browse.ScrollWaitMin)
	assert.Equal(t, 4*time.Second, cfg.Browse.ScrollWaitMax)
	assert.Equal(t, 0.1, cfg.Browse.EarlyExitProbability)
	assert.Equal(t, "https://connect.linux.do/", cfg.Site.ConnectURL)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 180*time.Second, cfg.Notifications.ServerChan.RetryMin)
	assert.Equal(t, 360*time.Second, cfg.Notifications.ServerChan.RetryMax)
	assert.Equal(t, "LINUX DO", cfg.Notifications.Title)
	assert.Equal(t, "autoread", cfg.Notifications.Redis.Stream)
	assert.Equal(t, "markdown", cfg.Notifications.StatsFormat)
	assert.Empty(t, cfg.Browser.RemoteURL)
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
username: file-user
password: file-pass
max_topics: 10
browse:
  like_probability: 0.5
notifications:
  gotify:
    url: https://push.example.com
    token: file-token
`)

	// file over defaults
	cfg, err := Load(New(), LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "file-user", cfg.Username)
	assert.Equal(t, 10, cfg.MaxTopics)
	assert.Equal(t, 0.5, cfg.Browse.LikeProbability)
	assert.Equal(t, "file-token", cfg.Notifications.Gotify.Token)

	// environment over file
	t.Setenv("LINUXDO_USERNAME", "env-user")
	t.Setenv("MAX_TOPICS", "20")
	t.Setenv("GOTIFY_TOKEN", "env-token")
	cfg, err = Load(New(), LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "file-pass", cfg.Password)
	assert.Equal(t, 20, cfg.MaxTopics)
	assert.Equal(t, "env-token", cfg.Notifications.Gotify.Token)

	// flags over environment
	v := New()
	flags := testFlags()
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--max-topics", "3", "--headless=false"}))
	cfg, err = Load(v, LoadOptions{ConfigFile: path, NoBrowse: true, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxTopics)
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.BrowseEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadUnchangedFlagsKeepEnvironment(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("MAX_TOPICS", "7")

	v := New()
	flags := testFlags()
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(v, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxTopics)
}

func TestLoadUsernameFallback(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("USERNAME", "fallback-user")
	t.Setenv("PASSWORD", "fallback-pass")

	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback-user", cfg.Username)
	assert.Equal(t, "fallback-pass", cfg.Password)

	t.Setenv("LINUXDO_USERNAME", "primary-user")
	cfg, err = Load(New(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "primary-user", cfg.Username)
}

func TestBrowseEnabledEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"false", false},
		{"0", false},
		{"OFF", false},
		{" off ", false},
		{"true", true},
		{"1", true},
		{"yes", true},
		{"anything", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBrowseEnabled(tt.raw), "raw %q", tt.raw)
	}

	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("BROWSE_ENABLED", "off")
	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)
	assert.False(t, cfg.BrowseEnabled)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("username = \"toml-user\"\n"), 0o644))

	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "toml-user", cfg.Username)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(New(), LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
	assert.True(t, taskerrors.Is(err, taskerrors.ErrorTypeConfiguration))
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, taskerrors.Is(err, taskerrors.ErrorTypeConfiguration))

	cfg.Username, cfg.Password = "u", "p"
	assert.NoError(t, cfg.Validate())

	cfg.Browse.LikeProbability = 1.5
	assert.Error(t, cfg.Validate())
	cfg.Browse.LikeProbability = 0.3

	cfg.Visited.Backend = "memory"
	assert.NoError(t, cfg.Validate())
	cfg.Visited.Backend = "sqlite"
	assert.Error(t, cfg.Validate())
	cfg.Visited.Backend = ""

	cfg.Notifications.StatsFormat = "html"
	assert.NoError(t, cfg.Validate())
	cfg.Notifications.StatsFormat = "pdf"
	assert.Error(t, cfg.Validate())
}

func TestStatsFormatAndRemoteURLFromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("STATS_FORMAT", "html")
	t.Setenv("BROWSER_REMOTE_URL", "ws://127.0.0.1:9222/devtools/browser/abc")

	cfg, err := Load(New(), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "html", cfg.Notifications.StatsFormat)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.RemoteURL)
}

func TestWriteDefault(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	for _, name := range []string{"config.json", "config.yaml", "nested/config.toml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteDefault(path))

		cfg, err := Load(New(), LoadOptions{ConfigFile: path})
		require.NoError(t, err, name)
		assert.Equal(t, 30, cfg.MaxTopics, name)
		assert.Equal(t, 2*time.Second, cfg.Browse.ScrollWaitMin, name)
	}

	// existing files are not overwritten
	assert.Error(t, WriteDefault(filepath.Join(dir, "config.json")))
	assert.Error(t, WriteDefault(filepath.Join(dir, "config.ini")))
}

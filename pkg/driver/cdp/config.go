package cdp

import "time"

// Config controls how the headless browser is launched.
type Config struct {
	// BrowserPath overrides binary discovery.
	BrowserPath string        `yaml:"browser_path"`
	Headless    bool          `yaml:"headless"`
	Width       int           `yaml:"width"`
	Height      int           `yaml:"height"`
	// UserDataDir holds the browser profile; a throwaway temp dir is
	// created when empty.
	UserDataDir     string        `yaml:"user_data_dir"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	ExtraArgs       []string      `yaml:"extra_args"`
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 1024
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 20 * time.Second
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 60 * time.Second
	}
	return c
}

// browserCandidates are tried in order when BrowserPath is unset.
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

// Package config holds the run configuration: target instance URLs,
// artifact locations, browser launch settings, and every wait bound the
// step machine uses. Values load from a yaml file on top of defaults;
// absent keys keep their defaults.
package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/odvcencio/webshots/pkg/driver/cdp"
	"github.com/odvcencio/webshots/pkg/logging"
	"github.com/odvcencio/webshots/pkg/session"
	"github.com/odvcencio/webshots/pkg/step"
	"github.com/odvcencio/webshots/pkg/supervisor"
)

// DefaultPath is tried when no config file is named explicitly.
const DefaultPath = "webshots.yaml"

// Instance is one deployment of the target archive: the GUI the browser
// drives and the API the catalog enumerates from.
type Instance struct {
	// GUI is the base page URL; collection pages hang off it as
	// <gui>/<collection_id><url_suffix>.
	GUI string `yaml:"gui"`
	// API is the REST root used to list collections.
	API string `yaml:"api"`
}

// Catalog tunes collection enumeration.
type Catalog struct {
	PageSize          int     `yaml:"page_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Config is the complete webshots configuration.
type Config struct {
	// Instance names the entry of Instances to run against.
	Instance  string              `yaml:"instance"`
	Instances map[string]Instance `yaml:"instances"`

	ArtifactsDir string `yaml:"artifacts_dir"`
	HistoryPath  string `yaml:"history_path"`
	LogDir       string `yaml:"log_dir"`
	LogLevel     string `yaml:"log_level"`
	// MetricsAddr serves /metrics and /healthz when non-empty.
	MetricsAddr string `yaml:"metrics_addr"`

	Headless bool `yaml:"headless"`
	Login    bool `yaml:"login"`

	Browser    cdp.Config             `yaml:"browser"`
	Supervisor supervisor.Config      `yaml:"supervisor"`
	Timeouts   step.Timeouts          `yaml:"timeouts"`
	Selectors  step.Selectors         `yaml:"selectors"`
	LoginUI    session.LoginSelectors `yaml:"login_ui"`
	Catalog    Catalog                `yaml:"catalog"`
}

// DefaultConfig returns the configuration a bare run uses: the public
// archive instance, headless browser, artifacts in the working
// directory.
func DefaultConfig() *Config {
	return &Config{
		Instance: "dandi",
		Instances: map[string]Instance{
			"dandi": {
				GUI: "https://dandiarchive.org/#/dandiset",
				API: "https://api.dandiarchive.org/api",
			},
			"dandi-beta": {
				GUI: "https://gui-beta-dandiarchive-org.netlify.app/#/dandiset",
				API: "https://api.dandiarchive.org/api",
			},
		},
		ArtifactsDir: ".",
		HistoryPath:  "webshots-history.db",
		LogDir:       "logs",
		LogLevel:     "info",
		Headless:     true,
		Browser:      cdp.Config{Headless: true},
		Timeouts:     step.DefaultTimeouts(),
		Selectors:    step.DefaultSelectors(),
		LoginUI:      session.DefaultLoginSelectors(),
		Catalog:      Catalog{PageSize: 100, RequestsPerSecond: 2},
	}
}

// Load reads the config file at path on top of defaults. An empty path
// tries DefaultPath and silently falls back to pure defaults when it
// does not exist; a named path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	inst, ok := c.Instances[c.Instance]
	if !ok {
		return fmt.Errorf("unknown instance %q", c.Instance)
	}
	for _, raw := range []string{inst.GUI, inst.API} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("instance %q has invalid URL %q", c.Instance, raw)
		}
	}
	if lvl := logging.ParseLevel(c.LogLevel); string(lvl) != c.LogLevel {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("artifacts_dir must not be empty")
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog page_size must be positive, got %d", c.Catalog.PageSize)
	}
	if c.Headless != c.Browser.Headless {
		// The top-level toggle wins; keep the browser config coherent.
		c.Browser.Headless = c.Headless
	}
	return nil
}

// Target returns the selected instance. Call after Validate.
func (c *Config) Target() Instance {
	return c.Instances[c.Instance]
}

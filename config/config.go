// Package config loads server configuration from YAML/JSON/TOML files and
// environment variables. Environment variables win over files, files over
// the defaults in the struct tags.
package config

import (
	"time"

	"github.com/gotify/configor"
)

type Configuration struct {
	App struct {
		ListenAddr     string   `default:"" env:"APP_HOST"`
		Port           int      `default:"8080" env:"APP_PORT"`
		LogLevel       string   `default:"info" env:"LOG_LEVEL"`
		AllowedOrigins []string `default:"[\"http://localhost:5173\",\"http://localhost:8080\"]" env:"APP_ALLOWED_ORIGINS"`
	}
	Database struct {
		Path string `default:"leave.db" env:"DB_PATH"`
	}
	Scheduler struct {
		Enabled  *bool         `default:"true" env:"SCHEDULER_ENABLED"`
		Interval time.Duration `default:"1m" env:"SCHEDULER_INTERVAL"`
	}
	Roster struct {
		URL     string        `default:"" env:"ROSTER_URL"`
		Token   string        `default:"" env:"ROSTER_TOKEN"`
		Timeout time.Duration `default:"10s" env:"ROSTER_TIMEOUT"`
	}
}

// DefaultFiles are read when Load gets no explicit files. Missing files are
// skipped.
func DefaultFiles() []string {
	return []string{"config.yml"}
}

// Load reads the configuration from files, falling back to DefaultFiles.
func Load(files ...string) (*Configuration, error) {
	if len(files) == 0 {
		files = DefaultFiles()
	}
	conf := new(Configuration)
	if err := configor.New(&configor.Config{}).Load(conf, files...); err != nil {
		return nil, err
	}
	return conf, nil
}

// SchedulerEnabled reports the scheduler switch, true when unset.
func (c *Configuration) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

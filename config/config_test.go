package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	conf, err := config.Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, conf.App.Port)
	assert.Equal(t, "leave.db", conf.Database.Path)
	assert.Equal(t, time.Minute, conf.Scheduler.Interval)
	assert.True(t, conf.SchedulerEnabled())
	assert.Empty(t, conf.Roster.URL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A config file setting the port and roster URL
	// WHEN: DB_PATH is also set in the environment
	// THEN: Both sources apply

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9090
roster:
  url: https://hr.example.com/api
  timeout: 3s
scheduler:
  enabled: false
`), 0o600))
	t.Setenv("DB_PATH", "/var/lib/leave/leave.db")

	conf, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, conf.App.Port)
	assert.Equal(t, "https://hr.example.com/api", conf.Roster.URL)
	assert.Equal(t, 3*time.Second, conf.Roster.Timeout)
	assert.Equal(t, "/var/lib/leave/leave.db", conf.Database.Path)
	assert.False(t, conf.SchedulerEnabled())
}

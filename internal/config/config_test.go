package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the tests touch and restores them afterwards
func clearEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if val, ok := os.LookupEnv(name); ok {
			t.Cleanup(func() { os.Setenv(name, val) })
		} else {
			t.Cleanup(func() { os.Unsetenv(name) })
		}
		os.Unsetenv(name)
	}
}

var testEnvVars = []string{
	"FORECAST_CONFIG_FILE",
	"FORECAST_SERVER_PORT",
	"FORECAST_PIPELINE_ENDPOINT",
	"FORECAST_PIPELINE_START_ACTION",
	"FORECAST_PIPELINE_POLL_INTERVAL",
	"FORECAST_LOGGING_LEVEL",
	"FORECAST_LOGGING_OUTPUT",
	"FORECAST_SECURITY_ALLOWED_ORIGINS",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no env vars",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, DefaultPipelineEndpoint, cfg.Pipeline.Endpoint)
				assert.Equal(t, "start", cfg.Pipeline.StartAction)
				assert.Equal(t, 5*time.Minute, cfg.Pipeline.PollInterval)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "console", cfg.Logging.Output)
				assert.True(t, cfg.Security.RateLimit.Enabled)
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"FORECAST_SERVER_PORT":              "9090",
				"FORECAST_PIPELINE_ENDPOINT":        "https://api.example.com/prod/forecast",
				"FORECAST_PIPELINE_START_ACTION":    "senddata",
				"FORECAST_PIPELINE_POLL_INTERVAL":   "90s",
				"FORECAST_LOGGING_LEVEL":            "debug",
				"FORECAST_SECURITY_ALLOWED_ORIGINS": "http://a.example,http://b.example",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "https://api.example.com/prod/forecast", cfg.Pipeline.Endpoint)
				assert.Equal(t, "senddata", cfg.Pipeline.StartAction)
				assert.Equal(t, 90*time.Second, cfg.Pipeline.PollInterval)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Security.AllowedOrigins)
			},
		},
		{
			name: "yaml file overlays defaults",
			file: `
server:
  port: 7070
pipeline:
  endpoint: https://file.example.com/api
  poll_interval: 2m
chart:
  width: 640
  height: 320
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "https://file.example.com/api", cfg.Pipeline.Endpoint)
				assert.Equal(t, 2*time.Minute, cfg.Pipeline.PollInterval)
				assert.Equal(t, 640, cfg.Chart.Width)
				assert.Equal(t, 320, cfg.Chart.Height)
				assert.Equal(t, "start", cfg.Pipeline.StartAction)
			},
		},
		{
			name: "environment wins over file",
			file: `
pipeline:
  endpoint: https://file.example.com/api
`,
			env: map[string]string{
				"FORECAST_PIPELINE_ENDPOINT": "https://env.example.com/api",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://env.example.com/api", cfg.Pipeline.Endpoint)
			},
		},
		{
			name:    "invalid endpoint",
			env:     map[string]string{"FORECAST_PIPELINE_ENDPOINT": "not a url"},
			wantErr: true,
		},
		{
			name:    "invalid port",
			env:     map[string]string{"FORECAST_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "invalid log output",
			env:     map[string]string{"FORECAST_LOGGING_OUTPUT": "syslog"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, testEnvVars...)

			// Run from an empty directory so no stray config.yaml is picked up
			dir := t.TempDir()
			wd, err := os.Getwd()
			require.NoError(t, err)
			require.NoError(t, os.Chdir(dir))
			t.Cleanup(func() { os.Chdir(wd) })

			if tt.file != "" {
				path := filepath.Join(dir, "forecast.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				os.Setenv("FORECAST_CONFIG_FILE", path)
			}
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresLogFileForFileOutput(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidatePongWaitMustExceedPingPeriod(t *testing.T) {
	cfg := Default()
	cfg.WebSocket.PongWait = cfg.WebSocket.PingPeriod
	assert.Error(t, cfg.Validate())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[development]
timezone = "Europe/Berlin"

[development.storage]
driver = "memory"
memory_max_bytes = 2048

[development.logging]
level = "debug"

[production]
timezone = "UTC"

[production.storage]
driver = "postgres"
dsn = "postgres://fightlog@localhost/fightlog?sslmode=disable"
fallback_on_error = false

[production.stats]
predict_window = 30
plateau_threshold = 0.2
`

func TestToml_Get(t *testing.T) {
	tml := &Toml{Development: &Config{Timezone: "dev"}, Production: &Config{Timezone: "prod"}}

	for _, env := range []string{"dev", "Development"} {
		cfg, err := tml.Get(env)
		require.NoError(t, err)
		assert.Equal(t, "dev", cfg.Timezone)
	}
	for _, env := range []string{"prod", "PRODUCTION"} {
		cfg, err := tml.Get(env)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.Timezone)
	}
	_, err := tml.Get("staging")
	assert.EqualError(t, err, "unknown env: staging")
}

func TestParse_SectionsKeepDefaults(t *testing.T) {
	dev, err := Parse("dev", []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, dev.Storage.Driver)
	assert.Equal(t, 2048, dev.Storage.MemoryMaxBytes)
	assert.Equal(t, "debug", dev.Logging.Level)
	assert.True(t, dev.Logging.ToStdout)
	assert.Equal(t, 365, dev.Stats.MaxPoints)
	assert.Equal(t, 14*24*time.Hour, dev.Stats.PlateauMinSpan())

	loc, err := dev.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	prod, err := Parse("prod", []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, prod.Storage.Driver)
	assert.False(t, prod.Storage.FallbackOnError)
	assert.Equal(t, 30, prod.Stats.PredictWindow)
	assert.Equal(t, 0.2, prod.Stats.PlateauThreshold)
	assert.Equal(t, 0.1, prod.Stats.MinSigma)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad toml", data: "[development"},
		{name: "unknown key", data: "[development.storage]\ndrvier = \"sqlite\""},
		{name: "bad driver", data: "[development.storage]\ndriver = \"mongo\""},
		{name: "missing dsn", data: "[development.storage]\ndriver = \"sqlite\"\ndsn = \"\""},
		{name: "bad threshold", data: "[development.stats]\nplateau_threshold = 1.5"},
		{name: "bad timezone", data: "[development]\ntimezone = \"Mars/Olympus\""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("dev", []byte(tc.data))
			assert.Error(t, err)
		})
	}

	_, err := Parse("qa", []byte(sample))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	_, err = Load("development", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Timezone = ""
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

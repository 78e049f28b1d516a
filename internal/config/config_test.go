package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/groupquest/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Session struct {
		CookieName string
		TTL        time.Duration
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
http:
  port: 9090
session:
  ttl: 2h
`), 0o600))

	var c testConfig
	c.HTTP.Port = 8080
	c.Session.CookieName = "groupquest"

	require.NoError(t, config.Load(file, &c))

	assert.Equal(t, int32(9090), c.HTTP.Port)
	assert.Equal(t, 2*time.Hour, c.Session.TTL)
	assert.Equal(t, "groupquest", c.Session.CookieName, "defaults should survive")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")

	var c testConfig
	c.HTTP.Port = 8080

	require.NoError(t, config.Load("", &c))
	assert.Equal(t, int32(7070), c.HTTP.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), &c)
	assert.Error(t, err)
}

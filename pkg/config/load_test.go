package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "thermonest.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.thermonest.dev")
	t.Setenv("INFLUX_URL", "http://localhost:8086")
	t.Setenv("INFLUX_TOKEN", "token")
	t.Setenv("INFLUX_ORG", "home")
	t.Setenv("INFLUX_BUCKET", "sensors")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, BackendInflux, cfg.Backend)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	require.False(t, cfg.MQTT.Enabled())
	require.NotNil(t, cfg.Timezone)
}

func TestLoad_InfluxRequiredOnlyForInfluxBackend(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "thermonest.eu.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.thermonest.dev")
	t.Setenv("INFLUX_URL", "")

	t.Setenv("STORE_BACKEND", "influx")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("STORE_BACKEND", "badger")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendBadger, cfg.Backend)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("DISPLAY_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("DISPLAY_TIMEZONE", "Europe/Rome")
	t.Setenv("MQTT_BROKER", "not a broker")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_ParsesLists(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://thermonest.onrender.com")
	t.Setenv("MQTT_BROKER", "localhost:1883")
	t.Setenv("DISPLAY_TIMEZONE", "Europe/Rome")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"http://localhost:3000", "https://thermonest.onrender.com"}, cfg.AllowedOrigins)
	require.True(t, cfg.MQTT.Enabled())

	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)
	require.Equal(t, rome.String(), cfg.Timezone.String())
}

func TestLoad_RequiresIdentityProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTH0_DOMAIN", "")

	_, err := Load()
	require.Error(t, err)
}

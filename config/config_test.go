package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brewpulse/internal/order"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "brewpulse.db", cfg.Database.DSN)
	assert.Equal(t, 5*time.Second, cfg.Store.WriteTimeout)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "brewpulse.orders", cfg.Events.Topic)
	assert.False(t, cfg.Push.Enabled())
	assert.Equal(t, order.DefaultMenu(), cfg.OrderMenu())
}

func TestLoad_MenuAndEnv(t *testing.T) {
	t.Setenv("BREWPULSE_ADMIN_PASSWORD", "from-env")

	cfg, err := Load(writeConfig(t, `
auth:
  admin_password: from-file
store:
  write_timeout_seconds: 2
menu:
  - id: Cortado
    milky: true
    default_milk: Light
  - id: Doppio
    coming_soon: true
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.AdminPassword)
	assert.Equal(t, 2*time.Second, cfg.Store.WriteTimeout)

	menu := cfg.OrderMenu()
	require.Len(t, menu, 2)
	assert.Equal(t, "Cortado", menu[0].Name)
	def, ok := menu[0].DefaultMilk()
	assert.True(t, ok)
	assert.Equal(t, order.MilkLight, def)
	assert.False(t, menu[1].IsMilky())
	assert.True(t, menu[1].ComingSoon)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package monitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configFile = `
homeassistant:
  url: http://localhost:8123
  token: secret
exporter:
  addr: :9090
health:
  addr: :8080
`

const roomsFile = `
rooms:
  - name: kitchen
    lights: [ light.kitchen ]
    motion: [ binary_sensor.motion_kitchen ]
    daytimes:
      - name: always
        light: 80
`

func TestNew(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configFile), 0o644))

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	// no rooms file yet
	_, _, _, err := New(v, "dev", slog.Default())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rooms.yaml"), []byte(roomsFile), 0o644))

	m, store, client, err := New(v, "dev", slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.NotNil(t, store)
	assert.NotNil(t, client)
}

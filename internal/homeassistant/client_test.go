package homeassistant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/automolid/automolid/internal/homeassistant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_TurnOn(t *testing.T) {
	tests := []struct {
		name     string
		entityID string
		data     map[string]any
		wantPath string
		wantBody map[string]any
		wantErr  assert.ErrorAssertionFunc
	}{
		{
			name:     "light with brightness",
			entityID: "light.kitchen",
			data:     map[string]any{"brightness_pct": float64(80)},
			wantPath: "/api/services/light/turn_on",
			wantBody: map[string]any{"entity_id": "light.kitchen", "brightness_pct": float64(80)},
			wantErr:  assert.NoError,
		},
		{
			name:     "switch",
			entityID: "switch.fan",
			wantPath: "/api/services/switch/turn_on",
			wantBody: map[string]any{"entity_id": "switch.fan"},
			wantErr:  assert.NoError,
		},
		{
			name:     "invalid entity",
			entityID: "notanentity",
			wantErr:  assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotBody map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer my-token", r.Header.Get("Authorization"))
				gotPath = r.URL.Path
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			}))
			defer server.Close()

			c := homeassistant.NewClient(server.URL, "my-token", nil)
			err := c.TurnOn(context.Background(), tt.entityID, tt.data)
			tt.wantErr(t, err)
			if err == nil {
				assert.Equal(t, tt.wantPath, gotPath)
				assert.Equal(t, tt.wantBody, gotBody)
			}
		})
	}
}

func TestClient_TurnOff(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer server.Close()

	c := homeassistant.NewClient(server.URL, "my-token", nil)
	require.NoError(t, c.TurnOff(context.Background(), "light.kitchen"))
	assert.Equal(t, "/api/services/light/turn_off", gotPath)
}

func TestClient_GetStates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"entity_id":"light.kitchen","state":"on"},{"entity_id":"sensor.humidity","state":"42.5"}]`))
	}))
	defer server.Close()

	c := homeassistant.NewClient(server.URL, "my-token", nil)
	states, err := c.GetStates(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "light", states[0].Domain())

	v, ok := states[1].Numeric()
	require.True(t, ok)
	assert.Equal(t, 42.5, v)

	_, ok = states[0].Numeric()
	assert.False(t, ok)
}

func TestClient_CallService_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := homeassistant.NewClient(server.URL, "my-token", nil)
	assert.Error(t, c.CallService(context.Background(), "light", "turn_on", nil))
}

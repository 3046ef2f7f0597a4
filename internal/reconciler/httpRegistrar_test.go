package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmwillett/wapiti-sub000/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRegistrar_Register(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/subscriptions", r.URL.Path)
		require.Equal(t, "alice", r.Header.Get("X-Principal"))

		var req entity.RegisterDeviceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(entity.DeviceRegistration{
			ID:       "reg-1",
			OwnerID:  "alice",
			Endpoint: req.Endpoint,
		})
	}))
	defer srv.Close()

	registrar := NewHTTPRegistrar(srv.URL, "alice")
	reg, created, err := registrar.Register(context.Background(), &entity.RegisterDeviceRequest{
		Endpoint:  "https://push.example/a",
		P256dhKey: "pk-a",
		AuthKey:   "auth-a",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "reg-1", reg.ID)
	assert.Equal(t, "https://push.example/a", reg.Endpoint)
}

func TestHTTPRegistrar_RegisterReconciled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entity.DeviceRegistration{ID: "reg-1"})
	}))
	defer srv.Close()

	registrar := NewHTTPRegistrar(srv.URL, "alice")
	_, created, err := registrar.Register(context.Background(), &entity.RegisterDeviceRequest{
		Endpoint: "https://push.example/a",
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestHTTPRegistrar_RemoveEndpoint(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/v1/subscriptions/endpoint", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	registrar := NewHTTPRegistrar(srv.URL, "alice")
	require.NoError(t, registrar.RemoveEndpoint(context.Background(), "alice", "https://push.example/a"))

	status = http.StatusNotFound
	err := registrar.RemoveEndpoint(context.Background(), "alice", "https://push.example/a")
	assert.ErrorIs(t, err, entity.ErrRegistrationNotFound)
}

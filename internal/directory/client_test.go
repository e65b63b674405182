package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetDoctorByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/doctors/id/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"House","email":"house@example.com","crm":"123"}`))
	}))
	defer srv.Close()

	doctor, err := NewClient(srv.URL+"/", time.Second).GetDoctorByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "House", doctor.Name)
	assert.Equal(t, "house@example.com", doctor.Email)
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetDoctorByID(context.Background(), 9)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 20*time.Millisecond).GetDoctorByID(context.Background(), 7)
	require.Error(t, err)
}

func TestClient_MissingEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"name":"House"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetDoctorByID(context.Background(), 7)
	require.Error(t, err)
}

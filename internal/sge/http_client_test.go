package sge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sge/login", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "teacher", body["user"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"class_options":[{"series":"6","class_code":"A","shift":"M","label":"6º ANO [A] (MATUTINO)"}]}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	options, err := client.Login(context.Background(), Credentials{User: "teacher", Password: "pw"})
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "A", options[0].ClassCode)
}

func TestHTTPClientBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"sessão expirada"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Login(context.Background(), Credentials{User: "teacher", Password: "pw"})
	require.Error(t, err)
	var bizErr *BusinessError
	require.ErrorAs(t, err, &bizErr)
	assert.Equal(t, "sessão expirada", bizErr.Reason)
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.Login(context.Background(), Credentials{User: "teacher", Password: "pw"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestHTTPClientCheckExistsLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"results":[]}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second, zap.NewNop())
	_, err := client.CheckExists(context.Background(), Credentials{User: "u", Password: "p"}, []ExistsQuery{{Period: 1}})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

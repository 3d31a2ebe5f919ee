package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisync/go-pharma/internal/domain/prescription"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
}

func TestExistsBatchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/find-medicines", r.URL.Path)

		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"X", "Y"}, req.Names)

		json.NewEncoder(w).Encode(batchResponse{
			Existing:    []string{"X"},
			NonExisting: []string{"Y"},
		})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)

	batch, err := client.ExistsBatch(context.Background(), []string{"X", "Y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, batch.Existing)
	assert.Equal(t, []string{"Y"}, batch.NonExisting)
}

func TestExistsBatchRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(batchResponse{Existing: []string{"X"}})
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)

	batch, err := client.ExistsBatch(context.Background(), []string{"X"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"X"}, batch.Existing)
}

func TestExistsBatchExhaustedRetries(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)

	_, err := client.ExistsBatch(context.Background(), []string{"X"})
	assert.ErrorIs(t, err, prescription.ErrCatalogUnavailable)
	assert.Equal(t, 3, calls)
}

func TestExistsBatchClientErrorNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(testConfig(server.URL), nil)

	_, err := client.ExistsBatch(context.Background(), []string{"X"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, prescription.ErrCatalogUnavailable)
	assert.Equal(t, 1, calls)
}

func TestExistsBatchUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(testConfig(server.URL), nil)

	_, err := client.ExistsBatch(context.Background(), []string{"X"})
	assert.ErrorIs(t, err, prescription.ErrCatalogUnavailable)
}

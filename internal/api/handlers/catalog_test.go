package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medisync/go-pharma/internal/domain/catalog"
)

func newCatalogServer(store *memStore, fetcher PriceFetcher) *httptest.Server {
	service := catalog.NewService(store, newMemCache(), nil)
	handler := NewCatalogHandler(service, fetcher, testMetrics, zap.NewNop())
	return httptest.NewServer(handler.Routes())
}

func TestFindMedicine(t *testing.T) {
	store := &memStore{snapshot: catalog.NewSnapshot("s1", map[string]int{"ASPIRIN": 25})}
	server := newCatalogServer(store, &staticFetcher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/find-medicine/ASPIRIN")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body FindResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ASPIRIN", body.MedicineName)
	assert.True(t, body.Exists)
	assert.Equal(t, catalog.SourceDatabase, body.Source)
}

func TestFindMedicineAbsent(t *testing.T) {
	store := &memStore{snapshot: catalog.NewSnapshot("s1", map[string]int{"ASPIRIN": 25})}
	server := newCatalogServer(store, &staticFetcher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/find-medicine/IBUPROFEN")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Absence is a valid 200 answer, not an error.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body FindResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Exists)
}

func TestFindMedicines(t *testing.T) {
	store := &memStore{snapshot: catalog.NewSnapshot("s1", map[string]int{"X": 25})}
	server := newCatalogServer(store, &staticFetcher{})
	defer server.Close()

	resp, err := http.Post(server.URL+"/find-medicines", "application/json",
		strings.NewReader(`{"names":["X","Y"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body FindBatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"X"}, body.Existing)
	assert.Equal(t, []string{"Y"}, body.NonExisting)
	assert.Equal(t, 2, body.Summary.TotalSearched)
	assert.Equal(t, 1, body.Summary.TotalFound)
	assert.Equal(t, 1, body.Summary.DatabaseHits+body.Summary.CacheHits)
}

func TestFindMedicinesBadRequest(t *testing.T) {
	server := newCatalogServer(&memStore{}, &staticFetcher{})
	defer server.Close()

	resp, err := http.Post(server.URL+"/find-medicines", "application/json",
		strings.NewReader(`{"names":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/find-medicines", "application/json",
		strings.NewReader(`not json`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSimilarMedicines(t *testing.T) {
	store := &memStore{snapshot: catalog.NewSnapshot("s1", map[string]int{
		"ASPIRIN": 25, "ASPIRIN FORTE": 40, "PARACETAMOL": 30,
	})}
	server := newCatalogServer(store, &staticFetcher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/similar-medicines?search=aspirin&limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body SimilarResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"ASPIRIN", "ASPIRIN FORTE"}, body.SimilarMedicines)
}

func TestSimilarMedicinesValidation(t *testing.T) {
	server := newCatalogServer(&memStore{}, &staticFetcher{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/similar-medicines")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/similar-medicines?search=x&limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePrices(t *testing.T) {
	store := &memStore{snapshot: catalog.NewSnapshot("old", map[string]int{"OLDMED": 10})}
	fetcher := &staticFetcher{medicines: map[string]int{"ASPIRIN": 25, "PARACETAMOL": 30}}
	server := newCatalogServer(store, fetcher)
	defer server.Close()

	resp, err := http.Post(server.URL+"/update-medicine-prices", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body RefreshResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Medicines)
	assert.True(t, body.Saved)
	assert.True(t, body.CacheCleared)
	assert.Equal(t, 1, body.Deleted)

	// The new snapshot is live.
	assert.True(t, store.snapshot.Contains("ASPIRIN"))
	assert.False(t, store.snapshot.Contains("OLDMED"))
}

func TestUpdatePricesFetchFailure(t *testing.T) {
	fetcher := &staticFetcher{err: errors.New("registry unreachable")}
	server := newCatalogServer(&memStore{}, fetcher)
	defer server.Close()

	resp, err := http.Post(server.URL+"/update-medicine-prices", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

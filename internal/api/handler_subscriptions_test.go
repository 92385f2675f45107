package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putSubscription(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/subscriptions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestPutSubscription(t *testing.T) {
	router, _ := setupTestAPI(t)

	w := putSubscription(t, router, map[string]any{
		"endpoint":      "https://push.example.com/sub-1",
		"p256dh":        "key",
		"auth":          "secret",
		"business_name": "The Exit Games",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Stored under the normalized business name.
	get := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example.com/sub-1", nil)
	router.ServeHTTP(get, req)
	require.Equal(t, http.StatusOK, get.Code)
	assert.JSONEq(t, `{"business_name":"the exit"}`, get.Body.String())
}

func TestPutSubscriptionReplacesExisting(t *testing.T) {
	router, _ := setupTestAPI(t)

	sub := map[string]any{
		"endpoint":      "https://push.example.com/sub-1",
		"p256dh":        "key",
		"auth":          "secret",
		"business_name": "The Exit Games",
	}
	require.Equal(t, http.StatusCreated, putSubscription(t, router, sub).Code)

	sub["business_name"] = ""
	require.Equal(t, http.StatusCreated, putSubscription(t, router, sub).Code)

	get := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example.com/sub-1", nil)
	router.ServeHTTP(get, req)
	require.Equal(t, http.StatusOK, get.Code)
	assert.JSONEq(t, `{"business_name":""}`, get.Body.String())
}

func TestPutSubscriptionMissingFields(t *testing.T) {
	router, _ := setupTestAPI(t)

	w := putSubscription(t, router, map[string]any{
		"endpoint": "https://push.example.com/sub-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSubscription(t *testing.T) {
	router, _ := setupTestAPI(t)

	require.Equal(t, http.StatusCreated, putSubscription(t, router, map[string]any{
		"endpoint": "https://push.example.com/sub-1",
		"p256dh":   "key",
		"auth":     "secret",
	}).Code)

	payload, _ := json.Marshal(map[string]any{"endpoint": "https://push.example.com/sub-1"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/subscriptions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	get := httptest.NewRecorder()
	getReq, _ := http.NewRequest("GET", "/api/subscriptions?endpoint=https://push.example.com/sub-1", nil)
	router.ServeHTTP(get, getReq)
	assert.Equal(t, http.StatusNotFound, get.Code)
}

func TestGetSubscriptionMissingEndpoint(t *testing.T) {
	router, _ := setupTestAPI(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/subscriptions", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKeyUnconfigured(t *testing.T) {
	router, _ := setupTestAPI(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	h := NewHandler(testConfig(), nil, nil, nil, nil, &webpush.Options{VAPIDPublicKey: "test-public-key"})
	router := gin.New()
	router.GET("/api/vapid_public_key", h.GetVAPIDPublicKey)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-public-key"}`, w.Body.String())
}

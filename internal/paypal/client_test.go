package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookverse/storefront/internal/domain/checkout"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int64) {
	t.Helper()
	var tokenCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte(`{"access_token":"TOKEN","expires_in":3600}`))
	})
	mux.HandleFunc("/", handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:          srv.URL,
		ClientID:         "client-id",
		Secret:           "secret",
		Currency:         "USD",
		CurrencyExponent: 2,
	}, srv.Client())
	return c, &tokenCalls
}

func TestCreateOrder(t *testing.T) {
	c, tokenCalls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		assert.Equal(t, "Bearer TOKEN", r.Header.Get("Authorization"))

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		require.Len(t, body.PurchaseUnits, 1)
		assert.Equal(t, "USD", body.PurchaseUnits[0].Amount.CurrencyCode)
		assert.Equal(t, "125.00", body.PurchaseUnits[0].Amount.Value)

		_, _ = w.Write([]byte(`{"id":"EXT-42","status":"CREATED"}`))
	})

	id, err := c.CreateOrder(context.Background(), 12500)
	require.NoError(t, err)
	assert.Equal(t, "EXT-42", id)

	// Second call reuses the cached token.
	_, err = c.CreateOrder(context.Background(), 12500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestCapture_Success(t *testing.T) {
	c, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/checkout/orders/EXT-42/capture", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id":"EXT-42","status":"COMPLETED",
			"purchase_units":[{"payments":{"captures":[{"id":"TX-7","status":"COMPLETED"}]}}]
		}`))
	})

	res, err := c.Capture(context.Background(), "EXT-42")
	require.NoError(t, err)
	assert.Equal(t, "TX-7", res.TransactionID)
}

func TestCapture_Declined(t *testing.T) {
	c, _ := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"EXT-42","status":"DECLINED"}`))
	})

	_, err := c.Capture(context.Background(), "EXT-42")
	require.ErrorIs(t, err, checkout.ErrPaymentDeclined)
}

func TestCapture_HTTPError(t *testing.T) {
	c, _ := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	})

	_, err := c.Capture(context.Background(), "EXT-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

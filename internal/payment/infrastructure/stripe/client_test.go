package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/payment/domain"
)

func TestClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "order-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())

		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "order-1", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "brl", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "15000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "Tee - Black", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[1][quantity]"))
		assert.Equal(t, "cart-1", r.PostForm.Get("metadata[cartId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://pay.example/cs_1","status":"open","payment_status":"unpaid","amount_total":31000,"currency":"brl","metadata":{"cartId":"cart-1"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: time.Second}, nil)
	sess, err := client.CreateCheckoutSession(context.Background(), domain.CreateSessionRequest{
		Currency: "brl",
		LineItems: []domain.LineItem{
			{Name: "Tee - Black", UnitAmountInCents: 15000, Quantity: 1},
			{Name: "Tee - White", UnitAmountInCents: 8000, Quantity: 2},
		},
		SuccessURL:        "http://localhost/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         "http://localhost/cart",
		ClientReferenceID: "order-1",
		Metadata:          map[string]string{domain.MetadataCartID: "cart-1"},
		IdempotencyKey:    "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", sess.ID)
	assert.Equal(t, "https://pay.example/cs_1", sess.URL)
	assert.Equal(t, int64(31000), sess.AmountTotal)
	assert.False(t, sess.IsPaid())
}

func TestClient_RetrieveCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_9","payment_status":"paid","metadata":{"orderId":"order-9"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test"}, nil)
	sess, err := client.RetrieveCheckoutSession(context.Background(), "cs_9")
	require.NoError(t, err)
	assert.True(t, sess.IsPaid())
	assert.Equal(t, "order-9", sess.Metadata[domain.MetadataOrderID])
}

func TestClient_ErrorCategories(t *testing.T) {
	cases := []struct {
		status   int
		category domain.ErrorCategory
	}{
		{http.StatusUnauthorized, domain.CategoryConfiguration},
		{http.StatusForbidden, domain.CategoryConfiguration},
		{http.StatusBadRequest, domain.CategoryRejected},
		{http.StatusTooManyRequests, domain.CategoryTransient},
		{http.StatusBadGateway, domain.CategoryTransient},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"some_code","message":"nope"}}`))
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test"}, nil)
			_, err := client.RetrieveCheckoutSession(context.Background(), "cs_1")
			require.Error(t, err)
			assert.Equal(t, tc.category, domain.CategoryOf(err))

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, "some_code", pe.Code)
		})
	}
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", Timeout: 20 * time.Millisecond}, nil)
	_, err := client.RetrieveCheckoutSession(context.Background(), "cs_1")
	require.Error(t, err)
	assert.Equal(t, domain.CategoryTransient, domain.CategoryOf(err))
}

func TestClient_BreakerOpensOnTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", BreakerFailures: 2, BreakerTimeout: time.Minute}, nil)
	for range 4 {
		_, err := client.RetrieveCheckoutSession(context.Background(), "cs_1")
		assert.Equal(t, domain.CategoryTransient, domain.CategoryOf(err))
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_RejectionsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, SecretKey: "sk_test", BreakerFailures: 1}, nil)
	for range 3 {
		_, err := client.RetrieveCheckoutSession(context.Background(), "cs_1")
		assert.Equal(t, domain.CategoryRejected, domain.CategoryOf(err))
	}
	assert.Equal(t, int32(3), hits.Load())
}

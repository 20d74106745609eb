package stripe

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/payment/domain"
)

const payload = `{"id":"evt_1","type":"checkout.session.completed","created":1700000000,"data":{"object":{"id":"cs_1","payment_status":"paid","metadata":{"orderId":"order-1","cartId":"cart-1"}}}}`

func TestWebhookVerifier_Valid(t *testing.T) {
	now := time.Unix(1700000100, 0)
	v := NewWebhookVerifier("whsec", 5*time.Minute)
	v.now = func() time.Time { return now }

	event, err := v.Verify([]byte(payload), Sign("whsec", []byte(payload), now))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, domain.EventSessionCompleted, event.Type)
	assert.Equal(t, "cs_1", event.Session.ID)
	assert.True(t, event.Session.IsPaid())
	assert.Equal(t, "cart-1", event.Session.Metadata[domain.MetadataCartID])
}

func TestWebhookVerifier_MultipleSignatures(t *testing.T) {
	now := time.Now()
	v := NewWebhookVerifier("whsec", time.Minute)

	header := Sign("whsec", []byte(payload), now) + ",v1=deadbeef,v0=ignored"
	_, err := v.Verify([]byte(payload), header)
	require.NoError(t, err)

	ts, sigs := parseHeader(header)
	require.Len(t, sigs, 2)
	rotated := "t=" + ts + ",v1=zz-not-hex,v1=" + sigs[0]
	_, err = v.Verify([]byte(payload), rotated)
	require.NoError(t, err)
}

func TestWebhookVerifier_Rejects(t *testing.T) {
	now := time.Now()
	valid := Sign("whsec", []byte(payload), now)

	cases := map[string]struct {
		secret  string
		payload string
		header  string
	}{
		"missing header":  {"whsec", payload, ""},
		"wrong secret":    {"other", payload, valid},
		"tampered body":   {"whsec", payload + " ", valid},
		"no timestamp":    {"whsec", payload, "v1=abc"},
		"no signature":    {"whsec", payload, "t=123"},
		"stale timestamp": {"whsec", payload, Sign("whsec", []byte(payload), now.Add(-time.Hour))},
		"empty secret":    {"", payload, valid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v := NewWebhookVerifier(tc.secret, 5*time.Minute)
			_, err := v.Verify([]byte(tc.payload), tc.header)
			assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
		})
	}
}

func TestWebhookVerifier_MalformedPayload(t *testing.T) {
	now := time.Now()
	v := NewWebhookVerifier("whsec", time.Minute)
	body := []byte(`not json`)
	_, err := v.Verify(body, Sign("whsec", body, now))
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

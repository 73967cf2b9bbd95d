package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func signPayload(t *testing.T, secret string, ts int64, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func sigHeader(t *testing.T, secret string, ts int64, payload []byte) string {
	t.Helper()
	return fmt.Sprintf("t=%d,v1=%s", ts, signPayload(t, secret, ts, payload))
}

var eventBody = []byte(`{
  "id": "evt_123",
  "type": "payment_intent.succeeded",
  "data": {
    "object": {
      "id": "pi_123",
      "status": "succeeded",
      "amount": 13200,
      "currency": "usd",
      "receipt_email": "buyer@example.com",
      "metadata": {"order_id": "order-1", "user_id": "user-1"}
    }
  }
}`)

func TestConstructEventValidSignature(t *testing.T) {
	now := time.Now()
	header := sigHeader(t, testSecret, now.Unix(), eventBody)

	ev, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.NoError(t, err)
	require.Equal(t, "evt_123", ev.ID)
	require.Equal(t, EventPaymentIntentSucceeded, ev.Type)

	intent, err := ev.Intent()
	require.NoError(t, err)
	require.Equal(t, "pi_123", intent.ID)
	require.Equal(t, int64(13200), intent.Amount)
	require.Equal(t, "order-1", intent.Metadata["order_id"])
}

func TestConstructEventTamperedBody(t *testing.T) {
	now := time.Now()
	header := sigHeader(t, testSecret, now.Unix(), eventBody)

	tampered := []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{"amount":1}}}`)
	_, err := constructEvent(tampered, header, testSecret, DefaultTolerance, now)
	require.ErrorIs(t, err, ErrSignature)
}

func TestConstructEventWrongSecret(t *testing.T) {
	now := time.Now()
	header := sigHeader(t, "whsec_other", now.Unix(), eventBody)

	_, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.ErrorIs(t, err, ErrSignature)
}

func TestConstructEventStaleTimestamp(t *testing.T) {
	now := time.Now()
	old := now.Add(-DefaultTolerance - time.Minute).Unix()
	header := sigHeader(t, testSecret, old, eventBody)

	_, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.ErrorIs(t, err, ErrSignature)
}

func TestConstructEventFutureTimestamp(t *testing.T) {
	now := time.Now()
	future := now.Add(DefaultTolerance + time.Minute).Unix()
	header := sigHeader(t, testSecret, future, eventBody)

	_, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.ErrorIs(t, err, ErrSignature)
}

func TestConstructEventMalformedHeader(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"no signature", fmt.Sprintf("t=%d", now.Unix())},
		{"no timestamp", "v1=deadbeef"},
		{"bad timestamp", "t=notanumber,v1=deadbeef"},
		{"garbage", "whatever"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := constructEvent(eventBody, tc.header, testSecret, DefaultTolerance, now)
			require.ErrorIs(t, err, ErrSignature)
		})
	}
}

// Stripe rotates secrets by sending multiple v1 entries; any one matching is
// enough.
func TestConstructEventMultipleSignatures(t *testing.T) {
	now := time.Now()
	good := signPayload(t, testSecret, now.Unix(), eventBody)
	stale := signPayload(t, "whsec_retired", now.Unix(), eventBody)
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), stale, good)

	ev, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.NoError(t, err)
	require.Equal(t, "evt_123", ev.ID)
}

func TestConstructEventNonHexSignatureSkipped(t *testing.T) {
	now := time.Now()
	good := signPayload(t, testSecret, now.Unix(), eventBody)
	header := fmt.Sprintf("t=%d,v1=zzzz,v1=%s", now.Unix(), good)

	ev, err := constructEvent(eventBody, header, testSecret, DefaultTolerance, now)
	require.NoError(t, err)
	require.Equal(t, "evt_123", ev.ID)
}

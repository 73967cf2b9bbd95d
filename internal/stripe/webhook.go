package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSignature covers every verification failure: missing or malformed
// header, stale timestamp, no matching signature. Callers fail closed on it.
var ErrSignature = errors.New("stripe: webhook signature verification failed")

// DefaultTolerance bounds how old a signed timestamp may be; replays outside
// the window are rejected.
const DefaultTolerance = 5 * time.Minute

const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventChargeSucceeded        = "charge.succeeded"
)

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Intent decodes the event's inner object as a payment intent.
func (e *Event) Intent() (*Intent, error) {
	var intent Intent
	if err := json.Unmarshal(e.Data.Object, &intent); err != nil {
		return nil, fmt.Errorf("stripe: decode event object: %w", err)
	}
	return &intent, nil
}

// ConstructEvent verifies the signature header against the raw, untouched
// request body and only then parses the event. The header carries
// "t=<unix>,v1=<hex hmac>[,v1=...]" where the hmac is SHA-256 over
// "<t>.<body>" keyed with the endpoint secret. Any re-serialization of the
// body upstream breaks this check, which is exactly the point.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	return constructEvent(payload, sigHeader, secret, DefaultTolerance, time.Now())
}

func constructEvent(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	ts, sigs, err := parseSigHeader(sigHeader)
	if err != nil {
		return nil, err
	}
	if d := now.Sub(time.Unix(ts, 0)); d > tolerance || d < -tolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		raw, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(raw, expected) {
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				return nil, fmt.Errorf("stripe: decode event: %w", err)
			}
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("%w: no matching v1 signature", ErrSignature)
}

func parseSigHeader(h string) (ts int64, sigs []string, err error) {
	if h == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignature)
	}
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrSignature)
			}
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", ErrSignature)
	}
	return ts, sigs, nil
}

package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/payment"
)

// signatureTolerance bounds how stale a signed timestamp may be before the
// event is rejected as a potential replay.
const signatureTolerance = 5 * time.Minute

// CheckSignature verifies a Stripe-Signature header against the exact raw
// request body. The header carries a unix timestamp and one or more v1
// HMAC-SHA256 signatures over "<timestamp>.<body>".
func CheckSignature(secret string, body []byte, header string, now time.Time) error {
	if header == "" {
		return payment.ErrMissingSignature
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return payment.ErrBadSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return payment.ErrBadSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", payment.ErrBadSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return payment.ErrBadSignature
}

// SignPayload builds a valid Stripe-Signature header for a body, used by
// tests and the local event simulator.
func SignPayload(secret string, body []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

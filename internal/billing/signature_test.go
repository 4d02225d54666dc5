package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"type":"customer.subscription.created"}`)
	secret := "whsec_test"
	now := time.Now()

	t.Run("valid signature", func(t *testing.T) {
		header := signPayload(payload, secret, now)
		assert.NoError(t, VerifySignature(payload, header, secret, now))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(payload, "", secret, now), ErrMissingSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := signPayload(payload, "whsec_other", now)
		assert.ErrorIs(t, VerifySignature(payload, header, secret, now), ErrBadSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := signPayload(payload, secret, now)
		tampered := []byte(`{"type":"customer.subscription.deleted"}`)
		assert.ErrorIs(t, VerifySignature(tampered, header, secret, now), ErrBadSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := signPayload(payload, secret, now.Add(-10*time.Minute))
		assert.ErrorIs(t, VerifySignature(payload, header, secret, now), ErrStaleTimestamp)
	})

	t.Run("garbage header", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(payload, "not-a-signature", secret, now), ErrBadSignature)
	})
}

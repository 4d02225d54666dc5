package calendar

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrBadSignature     = errors.New("signature verification failed")
)

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw payload
// carried in the X-Cal-Signature-256 header.
func VerifySignature(payload []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(header), []byte(expected)) {
		return ErrBadSignature
	}

	return nil
}

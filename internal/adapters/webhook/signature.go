package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Signature form fields posted by Mailgun with every webhook
const (
	FieldTimestamp = "timestamp"
	FieldToken     = "token"
	FieldSignature = "signature"

	defaultSignatureMaxAge = 15 * time.Minute
)

// ErrBadSignature is returned for webhook calls that fail verification
var ErrBadSignature = errors.New("invalid webhook signature")

// signatureVerifier checks the HMAC-SHA256 that Mailgun computes over
// timestamp+token with the webhook signing key
type signatureVerifier struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

func newSignatureVerifier(key string, maxAge time.Duration) *signatureVerifier {
	if maxAge <= 0 {
		maxAge = defaultSignatureMaxAge
	}
	return &signatureVerifier{key: []byte(key), maxAge: maxAge, now: time.Now}
}

func (v *signatureVerifier) verify(timestamp, token, signature string) error {
	if timestamp == "" || token == "" || signature == "" {
		return fmt.Errorf("%w: missing signature fields", ErrBadSignature)
	}

	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
	}
	age := v.now().Sub(time.Unix(seconds, 0))
	if age > v.maxAge || age < -v.maxAge {
		return fmt.Errorf("%w: timestamp outside the accepted window", ErrBadSignature)
	}

	given, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	if !hmac.Equal(given, Sign(v.key, timestamp, token)) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of timestamp+token under key
func Sign(key []byte, timestamp, token string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

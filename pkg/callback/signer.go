package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

const (
	// SignatureHeader carries "sha256=<hex hmac>" over "<timestamp>.<body>".
	SignatureHeader = "X-Voicequery-Signature-256"
	// TimestampHeader carries the unix time the signature was made.
	TimestampHeader = "X-Voicequery-Timestamp"

	// DefaultTolerance bounds how old a signed delivery may be.
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrInvalidSignature = errors.New("callback signature mismatch")
	ErrStaleTimestamp   = errors.New("callback timestamp outside tolerance")
)

// Sign returns the signature for body sent at ts.
func Sign(secret string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received delivery. timestamp is the raw TimestampHeader
// value. A non-positive tolerance uses DefaultTolerance.
func Verify(secret string, body []byte, timestamp, signature string, tolerance time.Duration) error {
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	ts := time.Unix(sec, 0)
	if d := time.Since(ts); d > tolerance || d < -tolerance {
		return ErrStaleTimestamp
	}
	if !hmac.Equal([]byte(Sign(secret, ts, body)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

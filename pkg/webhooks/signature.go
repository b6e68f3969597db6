package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Reason tags the outcome of an admission check. Reasons are data-dependent
// results, not errors; handlers map them to a uniform rejection.
type Reason string

const (
	ReasonMissingCredential    Reason = "MISSING_CREDENTIAL"
	ReasonMalformedSignature   Reason = "MALFORMED_SIGNATURE"
	ReasonSignatureMismatch    Reason = "SIGNATURE_MISMATCH"
	ReasonPayloadTooLarge      Reason = "PAYLOAD_TOO_LARGE"
	ReasonInvalidLengthHeader  Reason = "INVALID_LENGTH_HEADER"
	ReasonMissingEventType     Reason = "MISSING_EVENT_TYPE"
	ReasonUnsupportedEventType Reason = "UNSUPPORTED_EVENT_TYPE"
	ReasonStaleTimestamp       Reason = "STALE_TIMESTAMP"
	ReasonAlreadyProcessed     Reason = "ALREADY_PROCESSED"
	ReasonMissingDeliveryID    Reason = "MISSING_DELIVERY_ID"
	ReasonMalformedJSON        Reason = "MALFORMED_JSON"
)

type SignatureResult struct {
	Valid  bool
	Reason Reason
}

// SignBody computes the signature header value for a payload. Used by senders
// and by tests building authentic requests.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an HMAC-SHA256 signature of the form
// "sha256=<hex>" against the raw request body. The length check runs before
// the comparison because subtle.ConstantTimeCompare requires equal-length
// inputs; the comparison itself takes time independent of where the inputs
// first differ.
func VerifySignature(rawBody []byte, provided, secret string) SignatureResult {
	provided = strings.TrimSpace(provided)
	if provided == "" || secret == "" {
		return SignatureResult{Reason: ReasonMissingCredential}
	}
	expected := SignBody(secret, rawBody)
	if len(provided) != len(expected) {
		return SignatureResult{Reason: ReasonMalformedSignature}
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return SignatureResult{Reason: ReasonSignatureMismatch}
	}
	return SignatureResult{Valid: true}
}

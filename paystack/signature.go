package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// VerifySignature authenticates a webhook notification. The body must be
// the raw bytes as received: re-encoding the JSON changes the digest.
// A missing or malformed signature is simply invalid.
func VerifySignature(secret string, body []byte, signature string) bool {
	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(claimed, mac.Sum(nil))
}

// Sign computes the webhook signature for a body. The server side only
// needs it for tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

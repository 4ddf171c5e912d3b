package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signer produces and checks gateway callback signatures: hex(HMAC-SHA256(secret, orderId|paymentId)).
type Signer struct {
	Secret string
}

// Sign returns the signature for the order/payment pair, or "" without a secret.
func (s Signer) Sign(gatewayOrderID, paymentID string) string {
	key := strings.TrimSpace(s.Secret)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether cb carries a valid signature.
func (s Signer) Verify(cb Callback) bool {
	cb = cb.Normalise()
	expected := s.Sign(cb.GatewayOrderID, cb.PaymentID)
	if expected == "" || cb.Signature == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(cb.Signature)))
}

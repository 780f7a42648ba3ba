// Package hmacsig signs and checks gateway payment confirmations:
// hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
)

func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time and returns dompay.ErrInvalidSignature on mismatch.
func Verify(secret string, c dompay.Confirmation) error {
	want := Sign(secret, c.OrderID, c.PaymentID)
	got, err := hex.DecodeString(c.Signature)
	if err != nil {
		return dompay.ErrInvalidSignature
	}
	wantRaw, _ := hex.DecodeString(want)
	if !hmac.Equal(got, wantRaw) {
		return dompay.ErrInvalidSignature
	}
	return nil
}

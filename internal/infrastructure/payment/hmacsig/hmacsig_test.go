package hmacsig_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/hmacsig"
)

func TestSignMatchesGatewayFormat(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("order_1|pay_1"))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), hmacsig.Sign("secret", "order_1", "pay_1"))
}

func TestVerify(t *testing.T) {
	sig := hmacsig.Sign("secret", "order_1", "pay_1")

	assert.NoError(t, hmacsig.Verify("secret", dompay.Confirmation{OrderID: "order_1", PaymentID: "pay_1", Signature: sig}))

	cases := map[string]dompay.Confirmation{
		"wrong payment": {OrderID: "order_1", PaymentID: "pay_2", Signature: sig},
		"wrong order":   {OrderID: "order_2", PaymentID: "pay_1", Signature: sig},
		"not hex":       {OrderID: "order_1", PaymentID: "pay_1", Signature: "zz"},
		"empty":         {OrderID: "order_1", PaymentID: "pay_1"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, hmacsig.Verify("secret", c), dompay.ErrInvalidSignature)
		})
	}
	assert.ErrorIs(t, hmacsig.Verify("other", dompay.Confirmation{OrderID: "order_1", PaymentID: "pay_1", Signature: sig}), dompay.ErrInvalidSignature)
}

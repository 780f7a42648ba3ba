package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/sweetshop/internal/config"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/razorpay"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/sandbox"
)

func TestMigrateMemory(t *testing.T) {
	err := NewApp().Run([]string{"sweetshop", "--store", "memory", "--log-level", "error", "migrate"})
	assert.NoError(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SWEETSHOP_STORE_DRIVER", "mongo")
	// mongo without a URI is invalid; the flag switches back to memory
	err := NewApp().Run([]string{"sweetshop", "--store", "memory", "--log-level", "error", "migrate"})
	assert.NoError(t, err)

	err = NewApp().Run([]string{"sweetshop", "--log-level", "error", "migrate"})
	assert.ErrorContains(t, err, "MONGO_URI")
}

func TestUnknownStore(t *testing.T) {
	err := NewApp().Run([]string{"sweetshop", "--store", "sqlite", "migrate"})
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestSeedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`sweets:
  - name: Jalebi
    category: Indian Sweets
    price: "30"
    quantity: 20
`), 0o600))

	err := NewApp().Run([]string{"sweetshop", "--log-level", "error", "seed", "--file", path})
	assert.NoError(t, err)

	err = NewApp().Run([]string{"sweetshop", "--log-level", "error", "seed"})
	assert.ErrorContains(t, err, "catalog file required")
}

func TestServeRequiresJWTSecret(t *testing.T) {
	err := NewApp().Run([]string{"sweetshop", "--log-level", "error", "serve"})
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNewGateway(t *testing.T) {
	gw, keyID, err := newGateway(&config.Config{Gateway: config.GatewaySandbox})
	require.NoError(t, err)
	assert.IsType(t, &sandbox.Gateway{}, gw)
	assert.Equal(t, sandboxKeyID, keyID)

	gw, keyID, err = newGateway(&config.Config{
		Gateway: config.GatewayRazorpay, RazorpayKeyID: "rzp_test_1", RazorpayKeySecret: "s",
	})
	require.NoError(t, err)
	assert.IsType(t, &razorpay.Client{}, gw)
	assert.Equal(t, "rzp_test_1", keyID)

	_, _, err = newGateway(&config.Config{Gateway: config.GatewayRazorpay})
	assert.Error(t, err)
}

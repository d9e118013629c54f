package validator

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"wallet-signer/pkg/address"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transferRequest struct {
	Sender string `validate:"required,algo_address"`
	Kind   string `validate:"required,oneof=value_transfer asset_transfer"`
}

func TestStructAddressValidation(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	addr, err := address.NewAlgoGenerator().PubKeyToAddress(pub)
	require.NoError(t, err)

	assert.NoError(t, Struct(transferRequest{Sender: addr, Kind: "value_transfer"}))

	err = Struct(transferRequest{Sender: "bogus", Kind: "swap"})
	require.Error(t, err)
	msg := GetErrorMsg(err)
	assert.True(t, strings.Contains(msg, "Sender 不是合法地址"), msg)
	assert.True(t, strings.Contains(msg, "Kind 必须是"), msg)
}

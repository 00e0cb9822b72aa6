package ethereumAsset

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/stretchr/testify/assert"
)

func Test_EthereumAsset(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should expose every method the wrapper consumes", func(t *testing.T) {
		parsed, err := abi.JSON(strings.NewReader(ElasticAssetAbi))
		assert.Nil(t, err)
		for _, m := range []string{"balanceOf", "totalSupply", "scaledTotalSupply", "transfer", "transferFrom"} {
			_, ok := parsed.Methods[m]
			assert.True(t, ok, m)
		}
	})
	t.Run("Should derive the pool address from the custody key", func(t *testing.T) {
		key, err := crypto.GenerateKey()
		assert.Nil(t, err)

		asset, err := NewEthereumAsset(&EthereumAssetConfig{
			AssetAddress: common.HexToAddress("0xd46ba6d942050d489dbd938a2c909a5d5039a161"),
			ChainId:      big.NewInt(1),
			CustodyKey:   key,
		}, nil, l)
		assert.Nil(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), asset.Address())
	})
	t.Run("Should require a custody key and chain id", func(t *testing.T) {
		_, err := NewEthereumAsset(&EthereumAssetConfig{ChainId: big.NewInt(1)}, nil, l)
		assert.NotNil(t, err)

		key, _ := crypto.GenerateKey()
		_, err = NewEthereumAsset(&EthereumAssetConfig{CustodyKey: key}, nil, l)
		assert.NotNil(t, err)
	})
}

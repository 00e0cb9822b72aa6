package ethereumAsset

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"go.uber.org/zap"
)

// ElasticAssetAbi covers the subset of the rebasing ERC-20 the wrapper consumes.
const ElasticAssetAbi = `[
	{"constant":true,"inputs":[{"name":"who","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"scaledTotalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// IBackend is satisfied by *ethclient.Client.
type IBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
}

type EthereumAssetConfig struct {
	AssetAddress common.Address
	ChainId      *big.Int
	CustodyKey   *ecdsa.PrivateKey
}

// EthereumAsset drives a deployed rebasing token. The custody key owns the pooled balance and pays
// for the transfer transactions.
type EthereumAsset struct {
	backend  IBackend
	contract *bind.BoundContract
	config   *EthereumAssetConfig
	custody  common.Address
	logger   *zap.Logger
}

func NewEthereumAsset(cfg *EthereumAssetConfig, backend IBackend, l *zap.Logger) (*EthereumAsset, error) {
	if cfg.CustodyKey == nil {
		return nil, errors.New("custody key is required")
	}
	if cfg.ChainId == nil {
		return nil, errors.New("chain id is required")
	}
	parsed, err := abi.JSON(strings.NewReader(ElasticAssetAbi))
	if err != nil {
		l.Sugar().Errorw("Failed to parse elastic asset abi", zap.Error(err))
		return nil, err
	}

	return &EthereumAsset{
		backend:  backend,
		contract: bind.NewBoundContract(cfg.AssetAddress, parsed, backend, backend, backend),
		config:   cfg,
		custody:  crypto.PubkeyToAddress(cfg.CustodyKey.PublicKey),
		logger:   l,
	}, nil
}

func (e *EthereumAsset) Address() common.Address {
	return e.custody
}

func (e *EthereumAsset) callUint256(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	results := make([]interface{}, 0)
	err := e.contract.Call(&bind.CallOpts{Context: ctx}, &results, method, params...)
	if err != nil {
		e.logger.Sugar().Errorw("Failed to call elastic asset",
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	value, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, expected *big.Int", method, results[0])
	}
	return value, nil
}

func (e *EthereumAsset) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return e.callUint256(ctx, "balanceOf", account)
}

func (e *EthereumAsset) TotalSupply(ctx context.Context) (*big.Int, error) {
	return e.callUint256(ctx, "totalSupply")
}

func (e *EthereumAsset) ScaledTotalSupply(ctx context.Context) (*big.Int, error) {
	return e.callUint256(ctx, "scaledTotalSupply")
}

func (e *EthereumAsset) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return e.transact(ctx, "transfer", to, amount)
}

func (e *EthereumAsset) TransferFrom(ctx context.Context, from common.Address, amount *big.Int) error {
	return e.transact(ctx, "transferFrom", from, e.custody, amount)
}

// transact sends the transaction and blocks until it is mined. A mined transaction with a failed
// status is reported as elasticAsset.ErrTransferReverted.
func (e *EthereumAsset) transact(ctx context.Context, method string, params ...interface{}) error {
	opts, err := bind.NewKeyedTransactorWithChainID(e.config.CustodyKey, e.config.ChainId)
	if err != nil {
		return err
	}
	opts.Context = ctx

	tx, err := e.contract.Transact(opts, method, params...)
	if err != nil {
		e.logger.Sugar().Errorw("Failed to send elastic asset transaction",
			zap.String("method", method),
			zap.Error(err),
		)
		return err
	}
	e.logger.Sugar().Debugw("Sent elastic asset transaction",
		zap.String("method", method),
		zap.String("transactionHash", tx.Hash().Hex()),
	)

	receipt, err := bind.WaitMined(ctx, e.backend, tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.logger.Sugar().Errorw("Elastic asset transaction reverted",
			zap.String("method", method),
			zap.String("transactionHash", tx.Hash().Hex()),
			zap.Uint64("blockNumber", receipt.BlockNumber.Uint64()),
		)
		return errors.Wrapf(elasticAsset.ErrTransferReverted, "%s in transaction %s", method, tx.Hash().Hex())
	}
	return nil
}

func (e *EthereumAsset) CurrentHeight(ctx context.Context) (uint64, error) {
	return e.backend.BlockNumber(ctx)
}

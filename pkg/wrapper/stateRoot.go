package wrapper

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type LeafPrefix []byte

var (
	LeafPrefix_Controller  LeafPrefix = []byte("0x00")
	LeafPrefix_TotalShares LeafPrefix = []byte("0x01")
	LeafPrefix_Proxy       LeafPrefix = []byte("0x02")
	LeafPrefix_Holder      LeafPrefix = []byte("0x03")
)

func prefixed(prefix LeafPrefix, parts ...[]byte) []byte {
	leaf := append([]byte{}, prefix...)
	for _, p := range parts {
		leaf = append(leaf, p...)
	}
	return leaf
}

// orderedLeaves keeps address-keyed leaves in insertion order and refuses keys that arrive out of
// order or twice, so two stores with the same contents always produce the same tree.
func orderedLeaves(prefix LeafPrefix, entries []addressLeaf) ([][]byte, error) {
	om := orderedmap.New[string, []byte]()
	for _, entry := range entries {
		key := ledgerStore.FormatAddress(entry.address)
		if _, found := om.Get(key); found {
			return nil, fmt.Errorf("duplicate leaf %s", key)
		}
		om.Set(key, entry.value)
		if prev := om.GetPair(key).Prev(); prev != nil && prev.Key > key {
			return nil, errors.New("leaves are not in address order")
		}
	}
	leaves := make([][]byte, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		leaves = append(leaves, prefixed(prefix, common.HexToAddress(pair.Key).Bytes(), pair.Value))
	}
	return leaves, nil
}

type addressLeaf struct {
	address common.Address
	value   []byte
}

func uint256Bytes(n *big.Int) []byte {
	return math.U256Bytes(new(big.Int).Set(n))
}

// MerkleizeLedger builds a keccak256 merkle tree over the controller, the total shares, every proxy
// and every holder balance.
func MerkleizeLedger(ctx context.Context, reader ledgerStore.ILedgerReader) (*merkletree.MerkleTree, error) {
	controller, _, err := reader.GetController(ctx)
	if err != nil {
		return nil, err
	}
	total, err := reader.GetTotalShares(ctx)
	if err != nil {
		return nil, err
	}
	proxies, err := reader.ListProxies(ctx)
	if err != nil {
		return nil, err
	}
	holders, err := reader.ListHolders(ctx)
	if err != nil {
		return nil, err
	}

	leaves := [][]byte{
		prefixed(LeafPrefix_Controller, controller.Bytes()),
		prefixed(LeafPrefix_TotalShares, uint256Bytes(total)),
	}

	proxyEntries := make([]addressLeaf, 0, len(proxies))
	for _, p := range proxies {
		proxyEntries = append(proxyEntries, addressLeaf{address: p, value: []byte{1}})
	}
	proxyLeaves, err := orderedLeaves(LeafPrefix_Proxy, proxyEntries)
	if err != nil {
		return nil, err
	}
	leaves = append(leaves, proxyLeaves...)

	holderEntries := make([]addressLeaf, 0, len(holders))
	for _, h := range holders {
		holderEntries = append(holderEntries, addressLeaf{address: h.Holder, value: uint256Bytes(h.Shares)})
	}
	holderLeaves, err := orderedLeaves(LeafPrefix_Holder, holderEntries)
	if err != nil {
		return nil, err
	}
	leaves = append(leaves, holderLeaves...)

	return merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
}

// StateRoot commits to the whole ledger. Equal roots mean equal ledgers.
func (w *Wrapper) StateRoot(ctx context.Context) (common.Hash, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tree, err := MerkleizeLedger(ctx, w.store)
	if err != nil {
		w.logger.Sugar().Errorw("Failed to merkleize ledger", "error", err)
		return common.Hash{}, err
	}
	return common.BytesToHash(tree.Root()), nil
}

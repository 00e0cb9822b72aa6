package snapshot

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/tests"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore/memoryLedgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore/sqlLedgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/wrapper"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var (
	controller = common.HexToAddress("0xc000000000000000000000000000000000000001")
	proxy      = common.HexToAddress("0xd000000000000000000000000000000000000002")
	alice      = common.HexToAddress("0xa000000000000000000000000000000000000003")
	bob        = common.HexToAddress("0x0b00000000000000000000000000000000000004")
	digest     = common.HexToHash("0xfeed")
)

func seededStore(t *testing.T, l *zap.Logger) *memoryLedgerStore.MemoryLedgerStore {
	ctx := context.Background()
	s := memoryLedgerStore.NewMemoryLedgerStore(l)
	wide, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	err := s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		if err := tx.SetController(ctx, controller); err != nil {
			return err
		}
		if err := tx.AddProxy(ctx, proxy); err != nil {
			return err
		}
		if _, err := tx.AdjustShares(ctx, alice, wide); err != nil {
			return err
		}
		if _, err := tx.AdjustShares(ctx, bob, big.NewInt(7)); err != nil {
			return err
		}
		return tx.MarkAuthorizationUsed(ctx, digest, alice)
	})
	assert.Nil(t, err)
	return s
}

func rootOf(t *testing.T, reader ledgerStore.ILedgerReader) []byte {
	tree, err := wrapper.MerkleizeLedger(context.Background(), reader)
	assert.Nil(t, err)
	return tree.Root()
}

func Test_Snapshot(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	t.Run("Should resolve relative and home paths", func(t *testing.T) {
		p, err := resolveFilePath("ledger.csv")
		assert.Nil(t, err)
		assert.True(t, filepath.IsAbs(p))

		home, _ := os.UserHomeDir()
		p, err = resolveFilePath("~/ledger.csv")
		assert.Nil(t, err)
		assert.Equal(t, filepath.Join(home, "ledger.csv"), p)

		p, err = resolveFilePath("")
		assert.Nil(t, err)
		assert.Equal(t, "", p)
	})
	t.Run("Should export the ledger in a stable order", func(t *testing.T) {
		s := seededStore(t, l)
		records, err := ExportLedger(ctx, s)
		assert.Nil(t, err)

		kinds := make([]RecordKind, 0, len(records))
		for _, r := range records {
			kinds = append(kinds, r.Kind)
		}
		assert.Equal(t, []RecordKind{
			RecordKind_Controller,
			RecordKind_Proxy,
			RecordKind_Holder,
			RecordKind_Holder,
			RecordKind_Authorization,
		}, kinds)
		assert.Equal(t, ledgerStore.FormatAddress(bob), records[2].Key)
		assert.Equal(t, "7", records[2].Value)
	})
	t.Run("Should restore a snapshot into sqlite with the same state root", func(t *testing.T) {
		source := seededStore(t, l)
		file := filepath.Join(t.TempDir(), "ledger.csv")

		svc, err := NewSnapshotService(&SnapshotConfig{OutputFile: file, InputFile: file}, l)
		assert.Nil(t, err)
		assert.Nil(t, svc.CreateSnapshot(ctx, source))

		hashLine, err := os.ReadFile(HashFilePath(file))
		assert.Nil(t, err)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(string(hashLine)), " ledger.csv"))

		grm, err := tests.GetInMemorySqliteDatabaseConnection(l)
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)
		target := sqlLedgerStore.NewSqlLedgerStore(grm, l)

		assert.Nil(t, svc.RestoreSnapshot(ctx, target))
		assert.Equal(t, rootOf(t, source), rootOf(t, target))

		total, _ := target.GetTotalShares(ctx)
		sourceTotal, _ := source.GetTotalShares(ctx)
		assert.Equal(t, sourceTotal.String(), total.String())

		used, _ := target.IsAuthorizationUsed(ctx, digest)
		assert.True(t, used)
	})
	t.Run("Should refuse to restore into a non-empty ledger", func(t *testing.T) {
		source := seededStore(t, l)
		file := filepath.Join(t.TempDir(), "ledger.csv")
		svc, _ := NewSnapshotService(&SnapshotConfig{OutputFile: file, InputFile: file}, l)
		assert.Nil(t, svc.CreateSnapshot(ctx, source))

		err := svc.RestoreSnapshot(ctx, seededStore(t, l))
		assert.True(t, errors.Is(err, ErrStoreNotEmpty))
	})
	t.Run("Should reject a snapshot that no longer matches its hash", func(t *testing.T) {
		source := seededStore(t, l)
		file := filepath.Join(t.TempDir(), "ledger.csv")
		svc, _ := NewSnapshotService(&SnapshotConfig{OutputFile: file, InputFile: file}, l)
		assert.Nil(t, svc.CreateSnapshot(ctx, source))

		f, err := os.OpenFile(file, os.O_APPEND|os.O_WRONLY, 0644)
		assert.Nil(t, err)
		_, _ = f.WriteString("holder," + ledgerStore.FormatAddress(proxy) + ",1000\n")
		_ = f.Close()

		target := memoryLedgerStore.NewMemoryLedgerStore(l)
		err = svc.RestoreSnapshot(ctx, target)
		assert.True(t, errors.Is(err, ErrHashMismatch))

		total, _ := target.GetTotalShares(ctx)
		assert.Equal(t, "0", total.String())
	})
	t.Run("Should reject malformed rows and keep the store untouched", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "bad.csv")
		contents := "kind,key,value\n" +
			"holder," + ledgerStore.FormatAddress(alice) + ",5\n" +
			"holder," + ledgerStore.FormatAddress(bob) + ",-3\n"
		assert.Nil(t, os.WriteFile(file, []byte(contents), 0644))

		svc, _ := NewSnapshotService(&SnapshotConfig{InputFile: file}, l)
		target := memoryLedgerStore.NewMemoryLedgerStore(l)

		err := svc.RestoreSnapshot(ctx, target)
		assert.True(t, errors.Is(err, ErrMalformedRecord))

		shares, _ := target.GetShares(ctx, alice)
		assert.Equal(t, "0", shares.String())
	})
	t.Run("Should reject unknown record kinds", func(t *testing.T) {
		target := memoryLedgerStore.NewMemoryLedgerStore(l)
		err := target.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			return ImportLedger(ctx, tx, []*LedgerRecord{{Kind: "rebase", Key: "0x01"}})
		})
		assert.True(t, errors.Is(err, ErrMalformedRecord))
	})
}

package snapshot

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"go.uber.org/zap"
)

var (
	ErrStoreNotEmpty   = errors.New("snapshots can only be restored into an empty ledger")
	ErrHashMismatch    = errors.New("snapshot does not match its hash file")
	ErrMalformedRecord = errors.New("malformed snapshot record")
)

type RecordKind string

const (
	RecordKind_Controller    RecordKind = "controller"
	RecordKind_Proxy         RecordKind = "proxy"
	RecordKind_Holder        RecordKind = "holder"
	RecordKind_Authorization RecordKind = "authorization"
)

// LedgerRecord is one CSV row. Key is an address, except for authorizations where it is the
// digest and Value is the holder. Holder rows carry the share balance in Value.
type LedgerRecord struct {
	Kind  RecordKind `csv:"kind"`
	Key   string     `csv:"key"`
	Value string     `csv:"value"`
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

type SnapshotService struct {
	cfg    *SnapshotConfig
	logger *zap.Logger
}

func NewSnapshotService(cfg *SnapshotConfig, l *zap.Logger) (*SnapshotService, error) {
	var err error

	cfg.InputFile, err = resolveFilePath(cfg.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input file path: %w", err)
	}
	cfg.OutputFile, err = resolveFilePath(cfg.OutputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output file path: %w", err)
	}

	l.Sugar().Infow("Resolved file paths", "inputFile", cfg.InputFile, "outputFile", cfg.OutputFile)

	return &SnapshotService{
		cfg:    cfg,
		logger: l,
	}, nil
}

// resolveFilePath expands a leading ~ to the user's home directory and makes the path absolute.
func resolveFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath, nil
}

func HashFilePath(snapshotPath string) string {
	return snapshotPath + ".sha256"
}

// ExportLedger lists the ledger as records: controller first, then proxies, holders and used
// authorizations, each group in the order the reader returns it.
func ExportLedger(ctx context.Context, reader ledgerStore.ILedgerReader) ([]*LedgerRecord, error) {
	records := make([]*LedgerRecord, 0)

	controller, found, err := reader.GetController(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		records = append(records, &LedgerRecord{Kind: RecordKind_Controller, Key: ledgerStore.FormatAddress(controller)})
	}

	proxies, err := reader.ListProxies(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range proxies {
		records = append(records, &LedgerRecord{Kind: RecordKind_Proxy, Key: ledgerStore.FormatAddress(p)})
	}

	holders, err := reader.ListHolders(ctx)
	if err != nil {
		return nil, err
	}
	for _, h := range holders {
		records = append(records, &LedgerRecord{
			Kind:  RecordKind_Holder,
			Key:   ledgerStore.FormatAddress(h.Holder),
			Value: h.Shares.String(),
		})
	}

	uses, err := reader.ListUsedAuthorizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range uses {
		records = append(records, &LedgerRecord{
			Kind:  RecordKind_Authorization,
			Key:   u.Digest.Hex(),
			Value: ledgerStore.FormatAddress(u.Holder),
		})
	}
	return records, nil
}

func parseAddress(record *LedgerRecord, field string) (common.Address, error) {
	if !common.IsHexAddress(field) {
		return common.Address{}, errors.Wrapf(ErrMalformedRecord, "%s row has invalid address '%s'", record.Kind, field)
	}
	return common.HexToAddress(field), nil
}

// ImportLedger replays records into tx. The ledger total is rebuilt from the holder rows.
func ImportLedger(ctx context.Context, tx ledgerStore.ILedgerWriter, records []*LedgerRecord) error {
	for i, record := range records {
		switch record.Kind {
		case RecordKind_Controller:
			controller, err := parseAddress(record, record.Key)
			if err != nil {
				return err
			}
			if err := tx.SetController(ctx, controller); err != nil {
				return err
			}
		case RecordKind_Proxy:
			proxy, err := parseAddress(record, record.Key)
			if err != nil {
				return err
			}
			if err := tx.AddProxy(ctx, proxy); err != nil {
				return err
			}
		case RecordKind_Holder:
			holder, err := parseAddress(record, record.Key)
			if err != nil {
				return err
			}
			shares, ok := new(big.Int).SetString(record.Value, 10)
			if !ok || shares.Sign() <= 0 {
				return errors.Wrapf(ErrMalformedRecord, "row %d has invalid share balance '%s'", i, record.Value)
			}
			if _, err := tx.AdjustShares(ctx, holder, shares); err != nil {
				return err
			}
		case RecordKind_Authorization:
			digest, err := hexutil.Decode(record.Key)
			if err != nil || len(digest) != common.HashLength {
				return errors.Wrapf(ErrMalformedRecord, "row %d has invalid digest '%s'", i, record.Key)
			}
			holder, err := parseAddress(record, record.Value)
			if err != nil {
				return err
			}
			if err := tx.MarkAuthorizationUsed(ctx, common.BytesToHash(digest), holder); err != nil {
				return err
			}
		default:
			return errors.Wrapf(ErrMalformedRecord, "row %d has unknown kind '%s'", i, record.Kind)
		}
	}
	return nil
}

func isEmpty(ctx context.Context, reader ledgerStore.ILedgerReader) (bool, error) {
	total, err := reader.GetTotalShares(ctx)
	if err != nil {
		return false, err
	}
	_, hasController, err := reader.GetController(ctx)
	if err != nil {
		return false, err
	}
	proxies, err := reader.ListProxies(ctx)
	if err != nil {
		return false, err
	}
	uses, err := reader.ListUsedAuthorizations(ctx)
	if err != nil {
		return false, err
	}
	return total.Sign() == 0 && !hasController && len(proxies) == 0 && len(uses) == 0, nil
}

func generateHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening snapshot file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("error reading snapshot file: %w", err)
	}
	return strings.TrimPrefix(hexutil.Encode(hash.Sum(nil)), "0x"), nil
}

// CreateSnapshot writes the ledger to the configured output file, plus a sha256 file next to it.
// The ledger is read inside a single transaction so the export is consistent.
func (s *SnapshotService) CreateSnapshot(ctx context.Context, store ledgerStore.ILedgerStore) error {
	if s.cfg.OutputFile == "" {
		return fmt.Errorf("output file path is required")
	}

	var records []*LedgerRecord
	err := store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		var err error
		records, err = ExportLedger(ctx, tx)
		return err
	})
	if err != nil {
		s.logger.Sugar().Errorw("Failed to read ledger for snapshot", zap.Error(err))
		return err
	}

	out, err := os.Create(s.cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("error creating snapshot file: %w", err)
	}
	if err := gocsv.Marshal(records, out); err != nil {
		_ = out.Close()
		return fmt.Errorf("error writing snapshot file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing snapshot file: %w", err)
	}

	sum, err := generateHash(s.cfg.OutputFile)
	if err != nil {
		return err
	}
	hashLine := fmt.Sprintf("%s %s\n", sum, filepath.Base(s.cfg.OutputFile))
	if err := os.WriteFile(HashFilePath(s.cfg.OutputFile), []byte(hashLine), 0644); err != nil {
		return fmt.Errorf("error writing hash file: %w", err)
	}

	s.logger.Sugar().Infow("Successfully created snapshot",
		zap.String("file", s.cfg.OutputFile),
		zap.Int("records", len(records)),
		zap.String("sha256", sum),
	)
	return nil
}

func (s *SnapshotService) validateHash() error {
	contents, err := os.ReadFile(HashFilePath(s.cfg.InputFile))
	if os.IsNotExist(err) {
		s.logger.Sugar().Warnw("No hash file found, skipping snapshot validation", zap.String("file", s.cfg.InputFile))
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading hash file: %w", err)
	}
	fields := strings.Fields(string(contents))
	if len(fields) == 0 {
		return errors.Wrap(ErrHashMismatch, "hash file is empty")
	}
	sum, err := generateHash(s.cfg.InputFile)
	if err != nil {
		return err
	}
	if !strings.EqualFold(fields[0], sum) {
		return errors.Wrapf(ErrHashMismatch, "expected %s, got %s", fields[0], sum)
	}
	return nil
}

// RestoreSnapshot loads the configured input file into an empty store in a single transaction.
func (s *SnapshotService) RestoreSnapshot(ctx context.Context, store ledgerStore.ILedgerStore) error {
	if s.cfg.InputFile == "" {
		return fmt.Errorf("input file path is required")
	}
	if err := s.validateHash(); err != nil {
		return err
	}

	in, err := os.Open(s.cfg.InputFile)
	if err != nil {
		return fmt.Errorf("error opening snapshot file: %w", err)
	}
	defer in.Close()

	records := make([]*LedgerRecord, 0)
	if err := gocsv.Unmarshal(in, &records); err != nil {
		return errors.Wrap(ErrMalformedRecord, err.Error())
	}

	err = store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		empty, err := isEmpty(ctx, tx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrStoreNotEmpty
		}
		return ImportLedger(ctx, tx, records)
	})
	if err != nil {
		s.logger.Sugar().Errorw("Failed to restore from snapshot", zap.Error(err))
		return err
	}

	s.logger.Sugar().Infow("Successfully restored from snapshot",
		zap.String("file", s.cfg.InputFile),
		zap.Int("records", len(records)),
	)
	return nil
}

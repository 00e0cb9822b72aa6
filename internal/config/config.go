package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "WRAPPER"

type ValuationMode string

const (
	ValuationMode_Index ValuationMode = "index"
	ValuationMode_Pool  ValuationMode = "pool"
)

func ParseValuationMode(m string) (ValuationMode, error) {
	switch strings.ToLower(m) {
	case "", string(ValuationMode_Index):
		return ValuationMode_Index, nil
	case string(ValuationMode_Pool):
		return ValuationMode_Pool, nil
	default:
		return "", fmt.Errorf("unsupported valuation mode '%s'", m)
	}
}

type DbDriver string

const (
	DbDriver_Sqlite   DbDriver = "sqlite"
	DbDriver_Postgres DbDriver = "postgres"
)

type Config struct {
	Debug            bool
	EthereumConfig   EthereumConfig
	WrapperConfig    WrapperConfig
	DatabaseConfig   DatabaseConfig
	ReconcilerConfig ReconcilerConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	SignerConfig     SignerConfig
	SnapshotConfig   SnapshotConfig
}

type EthereumConfig struct {
	RpcUrl            string
	ChainId           uint64
	AssetAddress      string
	CustodyPrivateKey string
}

type WrapperConfig struct {
	Controller              string
	ValuationMode           string
	SingleUseAuthorizations bool
}

type DatabaseConfig struct {
	Driver     string
	SqlitePath string
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	SSLMode    string
}

type ReconcilerConfig struct {
	Interval       time.Duration
	AutoSweep      bool
	SweepThreshold string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type SignerConfig struct {
	ControllerPrivateKey string
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		EthereumConfig: EthereumConfig{
			RpcUrl:            viper.GetString(normalizeFlagName(EthereumRpcUrl)),
			ChainId:           viper.GetUint64(normalizeFlagName(EthereumChainId)),
			AssetAddress:      viper.GetString(normalizeFlagName(EthereumAssetAddress)),
			CustodyPrivateKey: viper.GetString(normalizeFlagName(EthereumCustodyPrivateKey)),
		},

		WrapperConfig: WrapperConfig{
			Controller:              viper.GetString(normalizeFlagName(WrapperController)),
			ValuationMode:           viper.GetString(normalizeFlagName(WrapperValuationMode)),
			SingleUseAuthorizations: viper.GetBool(normalizeFlagName(WrapperSingleUseAuthorizations)),
		},

		DatabaseConfig: DatabaseConfig{
			Driver:     viper.GetString(normalizeFlagName(DatabaseDriver)),
			SqlitePath: viper.GetString(normalizeFlagName(DatabaseSqlitePath)),
			Host:       viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:       viper.GetInt(normalizeFlagName(DatabasePort)),
			User:       viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:   viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:     viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName: viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:    viper.GetString(normalizeFlagName(DatabaseSSLMode)),
		},

		ReconcilerConfig: ReconcilerConfig{
			Interval:       viper.GetDuration(normalizeFlagName(ReconcilerInterval)),
			AutoSweep:      viper.GetBool(normalizeFlagName(ReconcilerAutoSweep)),
			SweepThreshold: viper.GetString(normalizeFlagName(ReconcilerSweepThreshold)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		SignerConfig: SignerConfig{
			ControllerPrivateKey: viper.GetString(normalizeFlagName(SignerControllerPrivateKey)),
		},

		SnapshotConfig: SnapshotConfig{
			OutputFile: viper.GetString(normalizeFlagName(SnapshotOutputFile)),
			InputFile:  viper.GetString(normalizeFlagName(SnapshotInputFile)),
		},
	}
}

func (c *Config) GetValuationMode() (ValuationMode, error) {
	return ParseValuationMode(c.WrapperConfig.ValuationMode)
}

func (c *Config) GetDatabaseDriver() DbDriver {
	if strings.ToLower(c.DatabaseConfig.Driver) == string(DbDriver_Postgres) {
		return DbDriver_Postgres
	}
	return DbDriver_Sqlite
}

func (c *Config) GetControllerAddress() (common.Address, error) {
	if !common.IsHexAddress(c.WrapperConfig.Controller) {
		return common.Address{}, fmt.Errorf("invalid controller address '%s'", c.WrapperConfig.Controller)
	}
	return common.HexToAddress(c.WrapperConfig.Controller), nil
}

func (c *Config) GetAssetAddress() (common.Address, error) {
	if !common.IsHexAddress(c.EthereumConfig.AssetAddress) {
		return common.Address{}, fmt.Errorf("invalid asset address '%s'", c.EthereumConfig.AssetAddress)
	}
	return common.HexToAddress(c.EthereumConfig.AssetAddress), nil
}

// GetSweepThreshold returns the minimum excess, in base units, the monitor will sweep.
func (c *Config) GetSweepThreshold() (*big.Int, error) {
	if c.ReconcilerConfig.SweepThreshold == "" {
		return big.NewInt(1), nil
	}
	threshold, ok := new(big.Int).SetString(c.ReconcilerConfig.SweepThreshold, 10)
	if !ok || threshold.Sign() < 0 {
		return nil, errors.New("sweep threshold must be a non-negative base-10 integer")
	}
	return threshold, nil
}

const (
	Debug = "debug"

	EthereumRpcUrl            = "ethereum.rpc-url"
	EthereumChainId           = "ethereum.chain-id"
	EthereumAssetAddress      = "ethereum.asset-address"
	EthereumCustodyPrivateKey = "ethereum.custody-private-key"

	WrapperController              = "wrapper.controller"
	WrapperValuationMode           = "wrapper.valuation-mode"
	WrapperSingleUseAuthorizations = "wrapper.single-use-authorizations"

	DatabaseDriver     = "database.driver"
	DatabaseSqlitePath = "database.sqlite-path"
	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db-name"
	DatabaseSchemaName = "database.schema-name"
	DatabaseSSLMode    = "database.ssl-mode"

	ReconcilerInterval       = "reconciler.interval"
	ReconcilerAutoSweep      = "reconciler.auto-sweep"
	ReconcilerSweepThreshold = "reconciler.sweep-threshold"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample-rate"

	SignerControllerPrivateKey = "signer.controller-private-key"

	SnapshotOutputFile = "snapshot.output-file"
	SnapshotInputFile  = "snapshot.input-file"
)

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

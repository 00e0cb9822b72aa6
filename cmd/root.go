package cmd

import (
	"os"
	"strings"

	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "wrapper",
	Short: "Custodial share-ledger wrapper for an elastic-supply asset",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.EthereumRpcUrl, "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Uint64(config.EthereumChainId, 0, `Chain id used to sign transactions (0 asks the node)`)
	rootCmd.PersistentFlags().String(config.EthereumAssetAddress, "", `Address of the elastic asset contract`)
	rootCmd.PersistentFlags().String(config.EthereumCustodyPrivateKey, "", `Hex private key of the account holding the pooled balance`)

	rootCmd.PersistentFlags().String(config.WrapperController, "", `Initial controller address`)
	rootCmd.PersistentFlags().String(config.WrapperValuationMode, string(config.ValuationMode_Index), `"index" or "pool"`)
	rootCmd.PersistentFlags().Bool(config.WrapperSingleUseAuthorizations, false, `Reject a withdrawal authorization once it has been used`)

	rootCmd.PersistentFlags().String(config.DatabaseDriver, string(config.DbDriver_Sqlite), `"sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String(config.DatabaseSqlitePath, "wrapper.db", `Path of the sqlite database file`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "wrapper", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "wrapper", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode`)

	rootCmd.PersistentFlags().Duration(config.ReconcilerInterval, 0, `How often the reconciler measures the pool (default 1m)`)
	rootCmd.PersistentFlags().Bool(config.ReconcilerAutoSweep, false, `Sweep the unattributed balance to the controller automatically`)
	rootCmd.PersistentFlags().String(config.ReconcilerSweepThreshold, "1", `Smallest excess, in base units, worth sweeping`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().String(config.SignerControllerPrivateKey, "", `Hex private key of the controller, used by sign-withdrawal`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(signWithdrawalCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(stateRootCmd)
	rootCmd.AddCommand(exportSnapshotCmd)
	rootCmd.AddCommand(restoreSnapshotCmd)
	rootCmd.AddCommand(simulateCmd)

	// bind any subcommand flags
	exportSnapshotCmd.PersistentFlags().String(config.SnapshotOutputFile, "", "Path to save the snapshot file to (required)")
	restoreSnapshotCmd.PersistentFlags().String(config.SnapshotInputFile, "", "Path to the snapshot file (required)")

	signWithdrawalCmd.Flags().String("holder", "", "Holder the authorization is issued to (required)")
	signWithdrawalCmd.Flags().Uint64("valid-until", 0, "Last height at which the authorization is accepted (required)")
	signWithdrawalCmd.Flags().String("wrapper-address", "", "Wrapper (custody) address; derived from the custody key when empty")

	balanceCmd.Flags().String("holder", "", "Holder to value (required)")
	balanceCmd.Flags().Int32("decimals", 9, "Decimals of the elastic asset, for display")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindCommandFlags binds a subcommand's own flags the same way the root binds its persistent flags.
func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			cmd.PrintErrf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			cmd.PrintErrf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

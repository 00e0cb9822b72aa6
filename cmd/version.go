package cmd

import (
	"fmt"

	"github.com/rhinofi/ampleforth-wrapper/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the wrapper",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)

		fmt.Printf("WrapperVersion: %s\nCommit: %s\n", version.GetVersion(), version.GetCommit())
	},
}

package cmd

import (
	"os"

	"github.com/SumantSagar73/certify/server/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration, secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Print(os.Stdout, conf)
	},
}

func init() {
	certifyCmd.AddCommand(configCmd)
	configCmd.AddCommand(configPrintCmd)
}

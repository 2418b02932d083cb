package cmd

import (
	"fmt"
	"os"

	"github.com/SumantSagar73/certify/server/config"
	"github.com/spf13/cobra"
)

var (
	configFile string
	v          = config.New()
	conf       *config.Configs
)

var certifyCmd = &cobra.Command{
	Use:           "certify",
	Short:         "Certificate vault",
	Long:          `Store certificates with their metadata, browse and search them, delete with undo.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func Execute() {
	if err := certifyCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() error {
	c, err := config.Get(v, configFile)
	if err != nil {
		return err
	}
	conf = c
	return nil
}

func init() {
	flags := certifyCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", config.DefaultFile, "Config file")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("server", "", "API base URL used by client commands")
	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("client.server_url", flags.Lookup("server"))
}

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/SumantSagar73/certify/pkg/logger"
	"github.com/SumantSagar73/certify/server/blob"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate-paths",
	Short: "Rewrite stored paths that no longer name an object",
	Long: `Checks every certificate's storage_path against the bucket and rewrites the
ones written in an older format to the object they refer to. Run it once
with the server stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateRun()
	},
}

func init() {
	certifyCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report without writing")
}

func migrateRun() error {
	log := logger.InitLogger(conf.LogLevel, "migrate")
	store, err := storage.Open(storage.Options{
		Driver: conf.DB.Driver,
		Path:   conf.DB.Path,
		DSN:    conf.PostgresDSN(),
		Log:    log,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	bucket, err := blob.NewOsBucket(conf.Storage.Root, blob.Options{Name: conf.Storage.Bucket})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	report, err := certificates.MigratePaths(ctx, store, bucket, migrateDryRun, log)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/SumantSagar73/certify/server/httpserver"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the change feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

func init() {
	certifyCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "API port")
	serveCmd.Flags().Int("pubsub-port", 0, "Change feed port")
	v.BindPFlag("httpserver.port", serveCmd.Flags().Lookup("port"))
	v.BindPFlag("pubsub.port", serveCmd.Flags().Lookup("pubsub-port"))
}

func serveRun() error {
	app, err := httpserver.NewApp(conf)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Run(ctx)
}

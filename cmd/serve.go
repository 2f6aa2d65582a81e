package cmd

import (
	"context"

	"github.com/evolearn/studyhub/internal/config"
	"github.com/evolearn/studyhub/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	if err := config.SetupLogging(cfg.Log); err != nil {
		logrus.Fatalf("error setting up logging: %v", err)
	}
	return cfg
}

func loadApp(ctx context.Context) *server.App {
	app, err := server.NewApp(ctx, loadConfig())
	if err != nil {
		logrus.Fatalf("error starting app: %v", err)
	}
	return app
}

func serveCmd() *cobra.Command {
	var worker string

	command := &cobra.Command{
		Use:   "serve",
		Short: "run the http api, the grpc health service and the scheduled tasks",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			app := loadApp(ctx)
			defer app.Close()

			if err := server.NewServer(app, server.WorkerMode(worker)).Start(ctx); err != nil {
				logrus.Fatalf("error starting server: %v", err)
			}
		},
	}

	command.Flags().StringVarP(&worker, "worker", "w", string(server.WorkerLoop), "summary worker mode: loop, cron or off")

	return command
}

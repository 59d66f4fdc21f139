package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/httpserver"
)

// Command creates the serve command which runs the HTTP API server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inspection API server",
		Long:  "Start the HTTP server exposing classification, speech, capture and reconstruction endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runServer(settings *conf.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := httpserver.New(settings)
	if err != nil {
		return err
	}

	return server.Start(ctx)
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for HTTP server")
	cmd.Flags().StringVar(&settings.Reconstruction.ColmapPath, "colmap", viper.GetString("reconstruction.colmappath"), "Path to the COLMAP binary")
	cmd.Flags().BoolVar(&settings.Output.SQLite.Enabled, "sqlite", viper.GetBool("output.sqlite.enabled"), "Mirror capture results into SQLite")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

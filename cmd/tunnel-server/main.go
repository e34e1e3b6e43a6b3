package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tiflis-tunnel/internal/server"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tunnel-server",
		Short: "Tiflis Tunnel gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigc
				log.Printf("shutting down...")
				cancel()
			}()

			log.Printf("starting tunnel server for domain %q", cfg.Server.Domain)
			if err := server.New(cfg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to server config file (TOML)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("tunnel-server: %v", err)
	}
}

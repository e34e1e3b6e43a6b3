package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tiflis-tunnel/internal/client"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tunnel-client",
		Short: "Tiflis Tunnel workstation agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := client.LoadConfig(configPath)
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

			log.Printf("starting tunnel client, workstation id %q, server %q", cfg.Workstation.ID, cfg.Server.Address)
			if err := client.New(cfg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to agent config file (TOML)")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("tunnel-client: %v", err)
	}
}

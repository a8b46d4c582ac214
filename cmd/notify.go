/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tehshkola/apiserver/config"
	"github.com/tehshkola/apiserver/internal/mq"
	"github.com/tehshkola/apiserver/internal/server"
	"go.uber.org/zap"
)

// notifyCmd represents the notify command: a back-office worker that tails
// the order events channel. Useful for watching incoming orders live and as
// the attachment point for future notification delivery.
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Consume and log order lifecycle events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is not configured")
		}

		logger := newLogger(cfg)
		defer logger.Sync()

		broker, err := server.OpenBroker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer broker.Close()

		logger.Info("listening for order events", zap.String("channel", cfg.MQ.OrdersChannel))
		return broker.Subscribe(cmd.Context(), cfg.MQ.OrdersChannel, func(ctx context.Context, msg mq.Message) error {
			logger.Info("order event",
				zap.String("id", msg.ID),
				zap.ByteString("data", msg.Data),
			)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

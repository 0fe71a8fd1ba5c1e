/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devnovate/api/config"
	"github.com/devnovate/api/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect article lifecycle events",
}

// eventsTailCmd prints article events as JSON lines until interrupted.
var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print article events from the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		out := json.NewEncoder(cmd.OutOrStdout())
		err = broker.Subscribe(ctx, cfg.MQ.Channel, func(_ context.Context, msg mq.Message) error {
			event, err := mq.DecodeArticleEvent(msg)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipping message: %v\n", err)
				return nil
			}
			return out.Encode(event)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

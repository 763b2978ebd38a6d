package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/madbus/madbus/logging"
	"github.com/madbus/madbus/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var reloadCatalog bool

func init() {
	serveCmd.Flags().BoolVarP(&reloadCatalog, "reload-catalog", "r", false, "Parse catalog CSVs into a database backend on startup")
}

func serve(cmd *cobra.Command, args []string) error {
	log := logging.GetLogger(logging.CLIModule)

	if err := cfg.RequireCredentials(true); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, reloadCatalog)
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		err := a.warmer().Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).WithField("stops", a.directory.Len()).Warn("stop directory incomplete")
		}
	}()

	api, updates, err := telegram.Connect(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	defer api.StopReceivingUpdates()
	log.WithField("bot", api.Self.UserName).Info("serving")

	bot := telegram.NewBot(api, a.service)
	bot.CacheTime = cfg.Telegram.CacheTime

	err = bot.Run(ctx, updates)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}

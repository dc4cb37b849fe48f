package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChamsBouzaiene/vimlm/internal/mailbox"
	"github.com/ChamsBouzaiene/vimlm/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the mailbox and answer editor requests (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	env, err := prepareRuntimeEnv(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()

	watcher, err := mailbox.NewWatcher(mailbox.WatcherConfig{
		Dir:    env.manager.MailboxPath(),
		Settle: env.cfg.Settle(),
		Logger: env.logger,
	})
	if err != nil {
		return err
	}

	driver := session.NewDriver(env.model, env.ingestor, session.Config{
		MailboxDir:     watcher.Dir(),
		TokenBudget:    env.cfg.TokenBudget,
		Separator:      env.cfg.Separator,
		DeployReformat: env.cfg.DeployReformat,
		WorkDir:        workDir(),
		Logger:         env.logger,
	})
	if err := driver.WriteResponse("LLM is ready"); err != nil {
		watcher.Close()
		return err
	}
	env.logger.Info("serving", zap.String("mailbox", watcher.Dir()))

	batches := make(chan mailbox.RequestBatch)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gctx, batches)
	})
	g.Go(func() error {
		// A quit batch ends Run cleanly; take the watcher down with it.
		defer cancel()
		return driver.Run(gctx, batches)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

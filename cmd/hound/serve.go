package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/arunsworld/nursery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/albumhound/internal/config"
	"github.com/franz/albumhound/internal/util"
	"github.com/franz/albumhound/internal/webserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface and the background jobs",
	Long: `Run the web interface together with the scheduler.

The scheduler periodically searches for wanted albums, refreshes followed
artists, post-processes finished downloads and optionally rescans the
library. Changes to the search, import and notify sections of the config
file are picked up without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "address to listen on (overrides web.listen)")
	viper.BindPFlag("web.listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if viper.ConfigFileUsed() != "" {
		config.Watch(viper.GetViper(), a.settings)
	}

	sched, err := a.jobs()
	if err != nil {
		return err
	}
	srv := webserver.New(&webserver.Config{
		Settings: a.settings,
		Store:    a.store,
		Artists:  a.importer,
		Searcher: a.searcher,
		Jobs:     sched,
		Metrics:  a.metrics,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.InfoLog("albumhound %s starting (%d providers)", Version, a.providers.Len())

	err = nursery.RunConcurrentlyWithContext(ctx,
		func(ctx context.Context, errCh chan error) {
			if err := srv.ListenAndServe(ctx); err != nil {
				errCh <- err
			}
		},
		func(ctx context.Context, errCh chan error) {
			if err := sched.Run(ctx); err != nil {
				errCh <- err
			}
		},
	)
	if err != nil {
		return err
	}
	util.InfoLog("Shut down")
	return nil
}

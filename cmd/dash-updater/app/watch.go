package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/hologram-io/dash-updater/cmd/dash-updater/app/options"
	"github.com/hologram-io/dash-updater/internal/pkg/metrics"
	"github.com/hologram-io/dash-updater/internal/updater"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/prompt"
	"github.com/hologram-io/dash-updater/internal/updater/watch"
	"github.com/hologram-io/dash-updater/pkg/log"
)

func newWatchCommand(opts *options.UpdaterOptions) *cobra.Command {
	var settle = watch.DefaultSettle

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Flash the user image over USB every time it is rebuilt",
		Long: `Watch --imagefile and flash it to the user module over USB whenever it
changes. Boot and system firmware are not checked. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(opts.Log)
			defer log.Sync()

			if opts.ImageFile == "" {
				return errors.New("watch requires --imagefile")
			}

			ctx := genericapiserver.SetupSignalContext()

			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg.Run.Kind = image.KindUser
			cfg.Run.Method = updater.MethodUSB
			cfg.Run.CheckUpdate = false

			rt, err := cfg.NewRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close(context.Background(), cfg)

			p := &prompt.Batch{Out: cmd.ErrOrStderr()}
			// A fresh updater per change: discovery starts at the primary ids again.
			update := func(ctx context.Context) error {
				return cfg.NewUpdater(rt, cfg.Run, p).Run(ctx)
			}

			w := watch.New(cfg.Run.ImageFile, update, settle, nil)
			w.OnResult = func(err error) {
				if err != nil {
					p.ShowError(err)
					return
				}
				p.ShowMessage("Update Complete")
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return w.Run(ctx) })
			if addr := cfg.MetricsOptions.BindAddress; addr != "" {
				g.Go(func() error { return metrics.NewServer(addr).Start(ctx) })
			}
			return g.Wait()
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", settle, "How long the image must stay unchanged before it is flashed.")
	return cmd
}

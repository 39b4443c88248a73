package app

import (
	"context"
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/hologram-io/dash-updater/cmd/dash-updater/app/options"
	"github.com/hologram-io/dash-updater/internal/updater"
	"github.com/hologram-io/dash-updater/pkg/app"
	"github.com/hologram-io/dash-updater/pkg/log"
)

const (
	commandName = "dash-updater"
	commandDesc = `Push a firmware image to a Dash, over USB or over the air through the
Hologram cloud. Before a user image is flashed over USB, the latest boot and
system firmware builds are offered when the device runs older ones.`
)

// Version is set at build time.
var Version = "0.9.0"

func NewApp() *app.App {
	opts := options.NewUpdaterOptions()
	application := app.NewApp(
		commandName,
		"Push a firmware image to a Dash",
		app.WithDescription(commandDesc),
		app.WithVersion(Version),
		app.WithEnvPrefix("DASH"),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
		app.WithSubCommands(newWatchCommand(opts)),
	)
	return application
}

func run(opts *options.UpdaterOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		rt, err := cfg.NewRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(context.Background(), cfg)

		p := cfg.NewPrompter()
		if err := cfg.NewUpdater(rt, cfg.Run, p).Run(ctx); err != nil {
			return err
		}

		if w := cfg.SuccessWriter(); w != nil {
			fmt.Fprintln(w, "Update Complete")
		} else {
			p.ShowMessage("Update Complete")
		}
		return nil
	}
}

// ExitCode maps the result of the command to the process exit status.
// Declined questions and missing inputs are not failures.
func ExitCode(err error) int {
	if err == nil || updater.IsMissingParameter(err) {
		return 0
	}
	return 1
}

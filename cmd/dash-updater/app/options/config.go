package options

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/hologram-io/dash-updater/internal/pkg/metrics"
	"github.com/hologram-io/dash-updater/internal/updater"
	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/notifier"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/prompt"
	"github.com/hologram-io/dash-updater/internal/updater/usb"
	"github.com/hologram-io/dash-updater/pkg/log"
	"github.com/hologram-io/dash-updater/pkg/options"
)

// Config is the assembled configuration of a dash-updater process.
type Config struct {
	Run updater.Config

	TextMode       bool
	AssumeYes      bool
	SaveFirmware   string
	UseTextSuccess bool

	UsbOptions     *options.UsbOptions
	CatalogOptions *options.CatalogOptions
	S3Options      *options.S3Options
	OTAOptions     *options.OTAOptions
	MqttOptions    *options.MqttOptions
	MetricsOptions *options.MetricsOptions
}

// Interactive reports whether questions are asked on the terminal: always
// with --text-mode, otherwise when stdin is a terminal and --yes is unset.
func (cfg *Config) Interactive() bool {
	if cfg.TextMode {
		return true
	}
	return !cfg.AssumeYes && term.IsTerminal(int(os.Stdin.Fd()))
}

// NewPrompter returns the prompter for this process.
func (cfg *Config) NewPrompter() prompt.Prompter {
	if cfg.Interactive() {
		return prompt.NewText(os.Stdin, os.Stdout)
	}
	return &prompt.Batch{AssumeYes: cfg.AssumeYes, SavePath: cfg.SaveFirmware, Out: os.Stderr}
}

// SuccessWriter is where the completion message goes when it does not go
// through the prompter.
func (cfg *Config) SuccessWriter() io.Writer {
	if cfg.UseTextSuccess {
		return os.Stdout
	}
	return nil
}

// Runtime owns the long lived resources of the process.
type Runtime struct {
	Opener   *usb.HIDOpener
	Notifier notifier.Notifier
	Catalog  catalog.Catalog
}

// NewRuntime opens the process wide resources. The status notifier is best
// effort; a broker that cannot be reached only disables it.
func (cfg *Config) NewRuntime(ctx context.Context) (*Runtime, error) {
	rt := &Runtime{Opener: usb.NewHIDOpener(), Notifier: notifier.Nop{}}

	if cfg.Run.CheckUpdate {
		c, err := cfg.newCatalog()
		if err != nil {
			return nil, err
		}
		rt.Catalog = c
	}

	if cfg.MqttOptions.Enabled() {
		n, err := notifier.NewMQTTNotifier(ctx, cfg.MqttOptions, cfg.Run.RunID)
		if err != nil {
			log.Warn("Status events disabled", "broker", cfg.MqttOptions.Broker, "err", err)
		} else {
			rt.Notifier = n
		}
	}
	return rt, nil
}

func (cfg *Config) newCatalog() (catalog.Catalog, error) {
	switch cfg.CatalogOptions.Source {
	case options.CatalogSourceS3:
		c, err := catalog.NewS3Catalog(cfg.S3Options)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 catalog: %w", err)
		}
		return c, nil
	default:
		return catalog.NewHTTPCatalog(cfg.CatalogOptions.BaseURL, nil), nil
	}
}

// Close releases the runtime and writes the metrics textfile if requested.
func (rt *Runtime) Close(ctx context.Context, cfg *Config) {
	rt.Notifier.Close(ctx)
	if err := rt.Opener.Close(); err != nil {
		log.Warn("Failed to release HID library", "err", err)
	}
	if path := cfg.MetricsOptions.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Error(err, "Failed to write metrics textfile", "path", path)
		}
	}
}

// NewUpdater builds an Updater for run using the runtime resources.
func (cfg *Config) NewUpdater(rt *Runtime, run updater.Config, p prompt.Prompter) *updater.Updater {
	transport := usb.NewTransport(rt.Opener, cfg.UsbOptions.VendorID, cfg.UsbOptions.ProductID,
		usb.WithLogger(log.Logr().WithName("usb")))

	opts := []updater.Option{
		updater.WithTransport(transport),
		updater.WithPrompter(p),
		updater.WithNotifier(rt.Notifier),
		updater.WithOTAClient(func(apiKey string) updater.OTAClient {
			return ota.NewClient(cfg.OTAOptions.APIBase, apiKey, nil)
		}),
	}
	if rt.Catalog != nil {
		opts = append(opts, updater.WithCatalog(rt.Catalog))
	}
	return updater.New(run, opts...)
}

package options

import (
	"fmt"

	"github.com/google/uuid"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/hologram-io/dash-updater/internal/updater"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/pkg/app"
	"github.com/hologram-io/dash-updater/pkg/log"
	"github.com/hologram-io/dash-updater/pkg/options"
)

// UpdaterOptions holds every flag of dash-updater.
type UpdaterOptions struct {
	ImageType string `json:"imagetype" mapstructure:"imagetype"`
	ImageFile string `json:"imagefile" mapstructure:"imagefile"`
	Method    string `json:"method" mapstructure:"method"`

	// TextMode forces interactive questions on the terminal.
	TextMode bool `json:"text-mode" mapstructure:"text-mode"`
	// AssumeYes accepts boot and system firmware offers without asking.
	AssumeYes bool `json:"yes" mapstructure:"yes"`
	// SaveFirmware keeps downloaded firmware at this path or directory.
	SaveFirmware string `json:"save-firmware" mapstructure:"save-firmware"`
	// UseTextSuccess prints the completion message on stdout, for IDEs that
	// only capture the console.
	UseTextSuccess bool `json:"use-text-success" mapstructure:"use-text-success"`

	UsbOptions     *options.UsbOptions     `json:"usb" mapstructure:"usb"`
	CatalogOptions *options.CatalogOptions `json:"catalog" mapstructure:"catalog"`
	S3Options      *options.S3Options      `json:"s3" mapstructure:"s3"`
	OTAOptions     *options.OTAOptions     `json:"ota" mapstructure:"ota"`
	MqttOptions    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	MetricsOptions *options.MetricsOptions `json:"metrics" mapstructure:"metrics"`
	Log            *log.Options            `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*UpdaterOptions)(nil)

func NewUpdaterOptions() *UpdaterOptions {
	return &UpdaterOptions{
		UsbOptions:     options.NewUsbOptions(),
		CatalogOptions: options.NewCatalogOptions(),
		S3Options:      options.NewS3Options(),
		OTAOptions:     options.NewOTAOptions(),
		MqttOptions:    options.NewMqttOptions(),
		MetricsOptions: options.NewMetricsOptions(),
		Log:            log.NewOptions(),
	}
}

func (o *UpdaterOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}

	fs := fss.FlagSet("update")
	fs.StringVar(&o.ImageType, "imagetype", o.ImageType, "Module the image is for ('user' or 'system').")
	fs.StringVar(&o.ImageFile, "imagefile", o.ImageFile, "Path of the image to push.")
	fs.StringVar(&o.Method, "method", o.Method, "How to push the image ('usb' or 'ota').")
	fs.BoolVar(&o.TextMode, "text-mode", o.TextMode, "Ask for anything missing on the terminal.")
	fs.BoolVarP(&o.AssumeYes, "yes", "y", o.AssumeYes, "Accept boot and system firmware updates without asking.")
	fs.StringVar(&o.SaveFirmware, "save-firmware", o.SaveFirmware, "Keep downloaded firmware at this file, or in this directory.")
	fs.BoolVar(&o.UseTextSuccess, "use-text-success", o.UseTextSuccess, "Print the completion message on stdout.")
	_ = fs.MarkHidden("use-text-success")

	o.UsbOptions.AddFlags(fss.FlagSet("usb"))
	o.CatalogOptions.AddFlags(fss.FlagSet("catalog"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.OTAOptions.AddFlags(fss.FlagSet("ota"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.MetricsOptions.AddFlags(fss.FlagSet("metrics"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *UpdaterOptions) Complete() error {
	o.Log.Complete()
	return nil
}

func (o *UpdaterOptions) Validate() error {
	errs := []error{}

	if o.ImageType != "" {
		if _, err := image.ParseKind(o.ImageType); err != nil {
			errs = append(errs, fmt.Errorf("--imagetype: %w", err))
		}
	}
	if o.Method != "" {
		if _, err := updater.ParseMethod(o.Method); err != nil {
			errs = append(errs, fmt.Errorf("--method: %w", err))
		}
	}

	errs = append(errs, o.UsbOptions.Validate()...)
	errs = append(errs, o.CatalogOptions.Validate()...)
	if o.CatalogOptions.Source == options.CatalogSourceS3 && !o.CatalogOptions.NoCheck {
		errs = append(errs, o.S3Options.Validate()...)
	}
	errs = append(errs, o.OTAOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.MetricsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

// Config turns validated options into the configuration of one run.
func (o *UpdaterOptions) Config() (*Config, error) {
	run := updater.Config{
		Kind:        image.Kind(o.ImageType),
		ImageFile:   o.ImageFile,
		Method:      updater.Method(o.Method),
		APIKey:      o.OTAOptions.APIKey,
		OrgID:       o.OTAOptions.OrgID,
		DeviceID:    o.OTAOptions.DeviceID,
		CheckUpdate: !o.CatalogOptions.NoCheck,
		RunID:       uuid.NewString(),
	}

	return &Config{
		Run:            run,
		TextMode:       o.TextMode,
		AssumeYes:      o.AssumeYes,
		SaveFirmware:   o.SaveFirmware,
		UseTextSuccess: o.UseTextSuccess,
		UsbOptions:     o.UsbOptions,
		CatalogOptions: o.CatalogOptions,
		S3Options:      o.S3Options,
		OTAOptions:     o.OTAOptions,
		MqttOptions:    o.MqttOptions,
		MetricsOptions: o.MetricsOptions,
	}, nil
}

package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*CatalogOptions)(nil)

const (
	CatalogSourceHTTP = "http"
	CatalogSourceS3   = "s3"
)

// CatalogOptions configures where boot and system firmware updates are
// looked up before a user image is flashed.
type CatalogOptions struct {
	// Source is either "http" or "s3".
	Source string `json:"source" mapstructure:"source"`

	// BaseURL is the HTTP download area holding version.json.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// NoCheck disables the update check entirely.
	NoCheck bool `json:"no-check" mapstructure:"no-check"`
}

// NewCatalogOptions creates CatalogOptions pointing at the official builds.
func NewCatalogOptions() *CatalogOptions {
	return &CatalogOptions{
		Source:  CatalogSourceHTTP,
		BaseURL: "http://downloads.hologram.io/dash/system_firmware",
	}
}

func (o *CatalogOptions) Validate() []error {
	var errs []error

	switch o.Source {
	case CatalogSourceHTTP:
		if err := ValidateURL("updateurl", o.BaseURL, "http", "https"); err != nil {
			errs = append(errs, err)
		}
	case CatalogSourceS3:
	default:
		errs = append(errs, fmt.Errorf("--catalog.source: unknown source %q", o.Source))
	}

	return errs
}

func (o *CatalogOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Source, "catalog.source", o.Source, "Where to look for firmware updates ('http' or 's3').")
	fs.StringVar(&o.BaseURL, "updateurl", o.BaseURL, "Base URL of the firmware download area.")
	fs.BoolVar(&o.NoCheck, "nocheck", o.NoCheck, "Do not check for boot or system firmware updates.")
	_ = fs.MarkHidden("updateurl")
	_ = fs.MarkHidden("nocheck")
}

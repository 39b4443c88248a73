package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*OTAOptions)(nil)

// OTAOptions configures the cloud OTA update path.
type OTAOptions struct {
	APIBase  string `json:"apibase" mapstructure:"apibase"`
	APIKey   string `json:"apikey" mapstructure:"apikey"`
	OrgID    int    `json:"orgid" mapstructure:"orgid"`
	DeviceID int    `json:"deviceid" mapstructure:"deviceid"`
}

func NewOTAOptions() *OTAOptions {
	return &OTAOptions{
		APIBase: "https://dashboard.hologram.io/api/1/",
	}
}

func (o *OTAOptions) Validate() []error {
	var errs []error
	if err := ValidateURL("apibase", o.APIBase, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (o *OTAOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.APIBase, "apibase", o.APIBase, "Base URL of the cloud API.")
	fs.StringVar(&o.APIKey, "apikey", o.APIKey, "Cloud API key used for OTA updates.")
	fs.IntVar(&o.OrgID, "orgid", o.OrgID, "Needed for OTA if the device isn't on your default organization.")
	fs.IntVar(&o.DeviceID, "deviceid", o.DeviceID, "Id of the device to update over the air.")
	_ = fs.MarkHidden("apibase")
}

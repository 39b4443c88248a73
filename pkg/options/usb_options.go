package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*UsbOptions)(nil)

// UsbOptions selects the device addressed by the USB update path.
type UsbOptions struct {
	// VendorID and ProductID of the primary device. The legacy bootloader
	// pair is always probed as a fallback.
	VendorID  uint16 `json:"vid" mapstructure:"vid"`
	ProductID uint16 `json:"pid" mapstructure:"pid"`
}

// NewUsbOptions creates UsbOptions addressing a current Dash.
func NewUsbOptions() *UsbOptions {
	return &UsbOptions{
		VendorID:  0x2cf3,
		ProductID: 0x1100,
	}
}

func (o *UsbOptions) Validate() []error {
	return nil
}

// AddFlags adds flags for UsbOptions to the specified FlagSet. Ids accept
// any Go integer literal, e.g. 0x2cf3.
func (o *UsbOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Uint16Var(&o.VendorID, "vid", o.VendorID, "USB vendor id of the device.")
	fs.Uint16Var(&o.ProductID, "pid", o.ProductID, "USB product id of the device.")
	_ = fs.MarkHidden("vid")
	_ = fs.MarkHidden("pid")
}

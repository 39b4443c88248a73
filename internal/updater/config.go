package updater

import (
	"fmt"

	"github.com/hologram-io/dash-updater/internal/updater/image"
)

// Method is how an image reaches the device.
type Method string

const (
	MethodUSB Method = "usb"
	MethodOTA Method = "ota"
)

// ParseMethod converts s to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodUSB, MethodOTA:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
}

// Config is everything a run knows before it starts. Empty fields are asked
// for through the Prompter. A Config is copied into the Updater and never
// modified afterwards.
type Config struct {
	Kind      image.Kind
	ImageFile string
	Method    Method

	APIKey   string
	OrgID    int
	DeviceID int

	// CheckUpdate looks for newer boot and system firmware before a user
	// image is flashed over USB.
	CheckUpdate bool

	// RunID identifies the run in status events.
	RunID string
}

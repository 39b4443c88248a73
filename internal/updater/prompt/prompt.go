// Package prompt collects the decisions an update run needs from whoever is
// driving it: a person at a terminal or a script passing flags.
package prompt

import (
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// Prompter answers every question the orchestrator may ask. An empty string,
// a zero id or false means the question was declined and the run must not
// proceed past it.
type Prompter interface {
	ImageKind() (image.Kind, error)
	ImageFile() (string, error)

	// Method returns "usb" or "ota". OTA is only offered for user images.
	Method(kind image.Kind) (string, error)

	APIKey() (string, error)
	OrgID(orgs []ota.Organization) (int, error)
	DeviceID(devices []ota.Device) (int, error)

	ConfirmBootUpdate(bootOld, bootNew, fwOld, fwNew version.Version) (bool, error)
	ConfirmFirmwareUpdate(fwOld, fwNew version.Version) (bool, error)

	// FirmwareSavePath returns where downloaded firmware should be kept, or ""
	// to skip saving. suggested is a default file name.
	FirmwareSavePath(suggested string) (string, error)

	ShowMessage(msg string)
	ShowError(err error)
}

package prompt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// Batch never reads input. Everything it would have asked must already be
// in the run configuration; questions it cannot answer are declined.
type Batch struct {
	// AssumeYes accepts every boot/firmware update offer.
	AssumeYes bool

	// SavePath, when set, keeps downloaded firmware. A directory receives the
	// suggested file name.
	SavePath string

	Out io.Writer
}

var _ Prompter = (*Batch)(nil)

func (b *Batch) ImageKind() (image.Kind, error) { return "", nil }
func (b *Batch) ImageFile() (string, error) { return "", nil }
func (b *Batch) Method(image.Kind) (string, error) { return "", nil }
func (b *Batch) APIKey() (string, error) { return "", nil }

func (b *Batch) OrgID(orgs []ota.Organization) (int, error) {
	return 0, nil
}

// DeviceID picks the only device when exactly one exists.
func (b *Batch) DeviceID(devices []ota.Device) (int, error) {
	if len(devices) == 1 {
		return devices[0].ID, nil
	}
	return 0, nil
}

func (b *Batch) ConfirmBootUpdate(bootOld, bootNew, fwOld, fwNew version.Version) (bool, error) {
	b.ShowMessage(fmt.Sprintf("Boot upgrade is available: %s -> %s (system firmware %s -> %s)", bootOld, bootNew, fwOld, fwNew))
	return b.AssumeYes, nil
}

func (b *Batch) ConfirmFirmwareUpdate(fwOld, fwNew version.Version) (bool, error) {
	b.ShowMessage(fmt.Sprintf("New system firmware is available: %s -> %s", fwOld, fwNew))
	return b.AssumeYes, nil
}

func (b *Batch) FirmwareSavePath(suggested string) (string, error) {
	if b.SavePath == "" {
		return "", nil
	}
	if fi, err := os.Stat(b.SavePath); err == nil && fi.IsDir() {
		return filepath.Join(b.SavePath, suggested), nil
	}
	return b.SavePath, nil
}

func (b *Batch) ShowMessage(msg string) {
	if b.Out != nil {
		fmt.Fprintln(b.Out, msg)
	}
}

func (b *Batch) ShowError(err error) {
	b.ShowMessage("Error: " + err.Error())
}

package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/usb"
	"github.com/hologram-io/dash-updater/pkg/log"
)

func (r *run) runUSB(ctx context.Context) error {
	if r.u.usb == nil {
		return errors.New("no usb transport configured")
	}

	if err := r.discover(ctx); err != nil {
		return err
	}
	if err := r.decide(ctx); err != nil {
		return err
	}
	if err := r.execute(ctx); err != nil {
		return err
	}
	return r.finish(ctx)
}

// discover finds the device at the configured ids, falling back to the
// legacy bootloader ids. Versions are only read from the configured ids;
// the legacy bootloader does not report them.
func (r *run) discover(ctx context.Context) error {
	t := r.u.usb
	vid, pid := t.IDs()

	switch {
	case t.DevicePresent(vid, pid):
		log.Debug("Device found", "vid", fmt.Sprintf("%04x", vid), "pid", fmt.Sprintf("%04x", pid))
		vs, err := t.ReadVersions()
		if err != nil {
			log.Warn("Device versions undetermined", "err", err)
		}
		r.versions = vs

	case t.DevicePresent(usb.LegacyVendorID, usb.LegacyProductID):
		log.Debug("Legacy device found", "vid", fmt.Sprintf("%04x", usb.LegacyVendorID), "pid", fmt.Sprintf("%04x", usb.LegacyProductID))
		t.SetIDs(usb.LegacyVendorID, usb.LegacyProductID)

	default:
		terr := &TransportError{Op: "discover", Err: ErrDeviceNotFound}
		_ = r.machine.fire(ctx, EventNotFound, terr)
		return terr
	}

	vid, pid = t.IDs()
	r.device = fmt.Sprintf("%04x:%04x", vid, pid)
	return r.machine.fire(ctx, EventDiscover, r.versions.String())
}

// decide consults the catalog for user images, picks the plan and asks for
// confirmation. A declined offer turns into NoAction.
func (r *run) decide(ctx context.Context) error {
	u := r.u

	var rel *catalog.Release
	if r.kind == image.KindUser && u.cfg.CheckUpdate && u.catalog != nil {
		latest, err := u.catalog.Latest(ctx)
		if err != nil {
			log.Info("Skipping firmware update check", "err", err)
		} else {
			rel = latest
		}
	}

	r.plan = DecidePlan(r.kind, r.versions, rel)

	var (
		ok  = true
		err error
	)
	switch r.plan.Action {
	case FlashBootThenFirmware:
		log.Debug("Boot update available", "from", r.versions.Boot(), "to", rel.Boot.Version)
		ok, err = u.prompter.ConfirmBootUpdate(r.versions.Boot(), rel.Boot.Version, r.versions.SystemFirmware, rel.Firmware.Version)
	case FlashFirmwareOnly:
		log.Debug("Firmware update available", "from", r.versions.SystemFirmware, "to", rel.Firmware.Version)
		ok, err = u.prompter.ConfirmFirmwareUpdate(r.versions.SystemFirmware, rel.Firmware.Version)
	}
	if err != nil {
		return r.fail(ctx, err)
	}
	if !ok {
		log.Info("Firmware update declined", "plan", r.plan.Action)
		r.plan.Action = NoAction
		r.plan.Release = nil
	}

	return r.machine.fire(ctx, EventDecide)
}

func (r *run) execute(ctx context.Context) error {
	var err error
	switch r.plan.Action {
	case FlashBootThenFirmware:
		err = r.flashBootThenFirmware(ctx)
	case FlashFirmwareOnly:
		err = r.flashFirmwareOnly(ctx)
	case FlashSystemImageDirect:
		err = r.flashSystemImage(ctx)
	default:
		err = r.machine.fire(ctx, EventSkip)
	}
	if err != nil {
		return err
	}

	if !r.plan.FlashUser {
		return nil
	}

	if err := r.machine.fire(ctx, EventFlashUser); err != nil {
		return err
	}
	if err := r.u.usb.UpdateUser(r.file); err != nil {
		return r.fail(ctx, &TransportError{Op: "flash user image", Err: err})
	}
	r.flashed = true
	log.Info("User image flashed", "imageFile", r.file)
	return nil
}

// flashBootThenFirmware downloads both images and checks both before the
// device is touched. Firmware goes to block FirmwareBlock behind the boot
// region, even though it is read from offset 0 of its own buffer.
func (r *run) flashBootThenFirmware(ctx context.Context) error {
	rel := r.plan.Release

	boot, err := r.download(ctx, rel.Boot)
	if err != nil {
		return r.fail(ctx, err)
	}
	firmware, err := r.download(ctx, rel.Firmware)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.offerSave(bootArtifactName(rel.Boot.Version, rel.Firmware.Version), func() []byte {
		return BootArtifact(boot, firmware)
	})

	if err := r.machine.fire(ctx, EventFlashBoot); err != nil {
		return err
	}
	if err := r.u.usb.UpdateSystemMemory(boot, 0, 0); err != nil {
		return r.fail(ctx, &TransportError{Op: "flash boot", Err: err})
	}
	r.flashed = true
	log.Info("Boot flashed", "version", rel.Boot.Version)

	if err := r.machine.fire(ctx, EventFlashFirmware); err != nil {
		return err
	}
	if err := r.u.usb.UpdateSystemMemory(firmware, 0, FirmwareBlock); err != nil {
		return r.fail(ctx, &TransportError{Op: "flash system firmware", Err: err})
	}
	log.Info("System firmware flashed", "version", rel.Firmware.Version)
	return nil
}

func (r *run) flashFirmwareOnly(ctx context.Context) error {
	rel := r.plan.Release

	firmware, err := r.download(ctx, rel.Firmware)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.offerSave(firmwareArtifactName(rel.Firmware.Version), func() []byte { return firmware })

	if err := r.machine.fire(ctx, EventFlashFirmware); err != nil {
		return err
	}
	if err := r.u.usb.UpdateSystemMemory(firmware, 0, 0); err != nil {
		return r.fail(ctx, &TransportError{Op: "flash system firmware", Err: err})
	}
	r.flashed = true
	log.Info("System firmware flashed", "version", rel.Firmware.Version)
	return nil
}

func (r *run) flashSystemImage(ctx context.Context) error {
	if err := r.machine.fire(ctx, EventFlashSystem); err != nil {
		return err
	}
	if err := r.u.usb.UpdateSystem(r.file); err != nil {
		return r.fail(ctx, &TransportError{Op: "flash system image", Err: err})
	}
	r.flashed = true
	log.Info("System image flashed", "imageFile", r.file)
	return nil
}

// download fetches a release artifact and requires it to be a system image.
func (r *run) download(ctx context.Context, a catalog.Artifact) ([]byte, error) {
	data, err := r.u.catalog.Fetch(ctx, a.Ref)
	if err != nil {
		return nil, &RemoteFetchError{Ref: a.Ref, Err: err}
	}
	if !image.ValidateSystemMemory(data) {
		return nil, &RemoteFetchError{Ref: a.Ref, Err: fmt.Errorf("%w: %s", image.ErrInvalidImageFile, a.Ref)}
	}
	return data, nil
}

// offerSave writes the downloaded firmware where the prompter asks. Any
// failure is shown and the flash goes on.
func (r *run) offerSave(suggested string, data func() []byte) {
	p := r.u.prompter

	path, err := p.FirmwareSavePath(suggested)
	if err != nil {
		p.ShowError(err)
		return
	}
	if path == "" {
		return
	}

	if err := saveArtifact(path, data()); err != nil {
		log.Error(err, "Failed to save firmware", "path", path)
		p.ShowError(err)
		return
	}
	log.Info("Firmware saved", "path", path)
}

// finish resets the device when anything was flashed. A refused reset frame
// is only a warning; the images are already in place.
func (r *run) finish(ctx context.Context) error {
	if r.state() == StateNoAction {
		return r.machine.fire(ctx, EventFinish, "nothing flashed")
	}
	if err := r.machine.fire(ctx, EventReset); err != nil {
		return err
	}

	if err := r.u.usb.ResetAll(); err != nil {
		var be *usb.BlockError
		if !errors.As(err, &be) {
			return r.fail(ctx, &TransportError{Op: "reset", Err: err})
		}
		log.Warn("Device did not accept reset", "err", err)
	}

	return r.machine.fire(ctx, EventFinish)
}

func (r *run) fail(ctx context.Context, err error) error {
	if ferr := r.machine.fire(ctx, EventFail, err); ferr != nil {
		log.Error(ferr, "Failed to record failure")
	}
	return err
}

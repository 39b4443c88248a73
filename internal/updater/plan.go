package updater

import (
	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// Action is the system level part of a Plan.
type Action string

const (
	FlashBootThenFirmware  Action = "flash_boot_then_firmware"
	FlashFirmwareOnly      Action = "flash_firmware_only"
	FlashSystemImageDirect Action = "flash_system_image_direct"
	NoAction               Action = "no_action"
)

// Plan is what a run will do to the device.
type Plan struct {
	Action Action

	// FlashUser appends flashing the caller's image to the user module. It is
	// set for every user image regardless of Action.
	FlashUser bool

	// Release is the catalog release Action refers to, if any.
	Release *catalog.Release
}

func (p Plan) String() string {
	if p.Action == "" {
		return ""
	}
	if p.FlashUser {
		return string(p.Action) + "+user"
	}
	return string(p.Action)
}

// DecidePlan chooses the plan for an image of kind given the versions
// reported by the device and the latest release. A nil release means no
// update check happened.
func DecidePlan(kind image.Kind, device version.Versions, rel *catalog.Release) Plan {
	if kind != image.KindUser {
		return Plan{Action: FlashSystemImageDirect}
	}

	p := Plan{Action: NoAction, FlashUser: true}
	if rel == nil {
		return p
	}

	switch {
	case rel.Boot.Version.Greater(device.Boot()):
		p.Action = FlashBootThenFirmware
		p.Release = rel
	case rel.Firmware.Version.Greater(device.SystemFirmware):
		p.Action = FlashFirmwareOnly
		p.Release = rel
	}
	return p
}

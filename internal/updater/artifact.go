package updater

import (
	"bytes"
	"fmt"
	"os"

	"github.com/hologram-io/dash-updater/internal/updater/usb"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// BootRegionSize is the space reserved for the boot image. System firmware
// that follows a boot image starts at block FirmwareBlock.
const BootRegionSize = 64 * 1024

// FirmwareBlock is the block index of the first firmware block when boot and
// firmware are flashed together.
const FirmwareBlock = BootRegionSize / usb.BlockSize

// BootArtifact lays out boot and firmware the way they sit in flash: boot,
// 0xFF up to BootRegionSize, then firmware.
func BootArtifact(boot, firmware []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(max(len(boot), BootRegionSize) + len(firmware))
	buf.Write(boot)
	if pad := BootRegionSize - len(boot); pad > 0 {
		buf.Write(bytes.Repeat([]byte{0xFF}, pad))
	}
	buf.Write(firmware)
	return buf.Bytes()
}

func bootArtifactName(boot, firmware version.Version) string {
	return fmt.Sprintf("boot_%s_system_%s.bin", boot, firmware)
}

func firmwareArtifactName(firmware version.Version) string {
	return fmt.Sprintf("system_firmware_%s.bin", firmware)
}

func saveArtifact(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

package version

import "fmt"

const (
	// ReportID tags the feature report that carries the on-device versions.
	ReportID = 0x40

	// ReportSize is the minimum length of a decodable version report:
	// marker(1) user_boot(3) reserved(3) system_boot(3) system_firmware(3).
	ReportSize = 13

	offsetUserBoot       = 1
	offsetSystemBoot     = 7
	offsetSystemFirmware = 10
)

// Versions holds the three independently versioned components of a device.
//
// The zero value means "undetermined": it is what a failed or malformed read
// produces, never a device genuinely running 0.0.0 everywhere. Check IsZero
// before using it as a comparison baseline.
type Versions struct {
	UserBoot       Version
	SystemBoot     Version
	SystemFirmware Version
}

// DecodeVersions decodes a raw feature report. A report that is shorter than
// ReportSize or does not start with ReportID yields the zero sentinel.
func DecodeVersions(report []byte) Versions {
	if len(report) < ReportSize || report[0] != ReportID {
		return Versions{}
	}

	return Versions{
		UserBoot:       FromBytes(report[offsetUserBoot:]),
		SystemBoot:     FromBytes(report[offsetSystemBoot:]),
		SystemFirmware: FromBytes(report[offsetSystemFirmware:]),
	}
}

// IsZero reports whether vs is the "undetermined" sentinel.
func (vs Versions) IsZero() bool {
	return vs.UserBoot.IsZero() && vs.SystemBoot.IsZero() && vs.SystemFirmware.IsZero()
}

// Boot returns the lower of the two boot versions, which is the one an
// update has to bring forward.
func (vs Versions) Boot() Version {
	return Min(vs.SystemBoot, vs.UserBoot)
}

// IsNewer reports whether any component of vs is greater than in other.
func (vs Versions) IsNewer(other Versions) bool {
	return vs.UserBoot.Greater(other.UserBoot) ||
		vs.SystemBoot.Greater(other.SystemBoot) ||
		vs.SystemFirmware.Greater(other.SystemFirmware)
}

func (vs Versions) String() string {
	return fmt.Sprintf("user_boot: %s system_boot: %s system_firmware: %s",
		vs.UserBoot, vs.SystemBoot, vs.SystemFirmware)
}

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hologram-io/dash-updater/internal/updater/version"
)

const manifestJSON = `{
	"system_firmware_version": "0.9.6",
	"system_firmware_location": "system_firmware_",
	"boot_version": "0.9.2",
	"boot_location": "boot_"
}`

func TestManifestRelease(t *testing.T) {
	m, err := DecodeManifest([]byte(manifestJSON))
	require.NoError(t, err)

	rel, err := m.Release("http://example.com/dash/")
	require.NoError(t, err)
	assert.Equal(t, version.New(0, 9, 6), rel.Firmware.Version)
	assert.Equal(t, "http://example.com/dash/system_firmware_0.9.6.bin", rel.Firmware.Ref)
	assert.Equal(t, version.New(0, 9, 2), rel.Boot.Version)
	assert.Equal(t, "http://example.com/dash/boot_0.9.2.bin", rel.Boot.Ref)

	rel, err = m.Release("")
	require.NoError(t, err)
	assert.Equal(t, "boot_0.9.2.bin", rel.Boot.Ref)
}

func TestManifestErrors(t *testing.T) {
	_, err := DecodeManifest([]byte("<html>"))
	assert.ErrorIs(t, err, ErrRemoteFetch)

	for name, m := range map[string]Manifest{
		"firmware": {SystemFirmwareVersion: "0.9", BootVersion: "0.9.2"},
		"boot":     {SystemFirmwareVersion: "0.9.6", BootVersion: "x.y.z"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Release("base")
			assert.ErrorIs(t, err, ErrRemoteFetch)
		})
	}
}

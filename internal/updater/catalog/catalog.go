// Package catalog reads the remote manifest advertising the latest boot and
// system firmware builds, and downloads the advertised binaries.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hologram-io/dash-updater/internal/updater/version"
)

// DefaultBaseURL is where the official firmware builds are published.
const DefaultBaseURL = "http://downloads.hologram.io/dash/system_firmware"

// ManifestName is the manifest object under the catalog base.
const ManifestName = "version.json"

// ErrRemoteFetch is wrapped by every manifest or binary fetch failure.
var ErrRemoteFetch = errors.New("remote fetch failed")

// Manifest is the JSON document published at <base>/version.json.
type Manifest struct {
	SystemFirmwareVersion  string `json:"system_firmware_version"`
	SystemFirmwareLocation string `json:"system_firmware_location"`
	BootVersion            string `json:"boot_version"`
	BootLocation           string `json:"boot_location"`
}

// Artifact is one downloadable build. Ref is resolved by the Catalog that
// produced it: a URL for HTTP, an object key for S3.
type Artifact struct {
	Version version.Version
	Ref     string
}

// Release is the pair of builds a manifest advertises.
type Release struct {
	Firmware Artifact
	Boot     Artifact
}

// Catalog is a source of firmware releases.
type Catalog interface {
	// Latest fetches and decodes the manifest.
	Latest(ctx context.Context) (*Release, error)

	// Fetch downloads the artifact with the given ref.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// DecodeManifest parses raw manifest bytes.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: invalid manifest: %v", ErrRemoteFetch, err)
	}
	return &m, nil
}

// Release resolves m against base. Artifact refs take the form
// <base>/<location><version>.bin.
func (m *Manifest) Release(base string) (*Release, error) {
	fw, err := version.Parse(m.SystemFirmwareVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: system_firmware_version: %v", ErrRemoteFetch, err)
	}
	boot, err := version.Parse(m.BootVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: boot_version: %v", ErrRemoteFetch, err)
	}

	return &Release{
		Firmware: Artifact{Version: fw, Ref: artifactRef(base, m.SystemFirmwareLocation, fw)},
		Boot:     Artifact{Version: boot, Ref: artifactRef(base, m.BootLocation, boot)},
	}, nil
}

func artifactRef(base, location string, v version.Version) string {
	name := location + v.String() + ".bin"
	if base == "" {
		return name
	}
	return strings.TrimSuffix(base, "/") + "/" + name
}

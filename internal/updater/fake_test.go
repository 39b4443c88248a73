package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/notifier"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/prompt"
	"github.com/hologram-io/dash-updater/internal/updater/usb"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

type ids struct{ vid, pid uint16 }

type call struct {
	op    string
	size  int
	block int
}

type fakeTransport struct {
	active   ids
	present  map[ids]bool
	versions version.Versions

	failOp  string
	failErr error

	versionReads int
	calls        []call
}

func newFakeTransport(present ...ids) *fakeTransport {
	t := &fakeTransport{
		active:  ids{usb.DefaultVendorID, usb.DefaultProductID},
		present: map[ids]bool{},
	}
	for _, p := range present {
		t.present[p] = true
	}
	return t
}

func (t *fakeTransport) SetIDs(vid, pid uint16) { t.active = ids{vid, pid} }
func (t *fakeTransport) IDs() (uint16, uint16) { return t.active.vid, t.active.pid }
func (t *fakeTransport) DevicePresent(v, p uint16) bool { return t.present[ids{v, p}] }

func (t *fakeTransport) ReadVersions() (version.Versions, error) {
	t.versionReads++
	if t.versions.IsZero() {
		return version.Versions{}, usb.ErrVersionsUndetermined
	}
	return t.versions, nil
}

func (t *fakeTransport) record(c call) error {
	if c.op == t.failOp {
		return t.failErr
	}
	t.calls = append(t.calls, c)
	return nil
}

func (t *fakeTransport) UpdateUser(path string) error {
	return t.record(call{op: "user", size: fileSize(path)})
}

func (t *fakeTransport) UpdateSystem(path string) error {
	return t.record(call{op: "system", size: fileSize(path)})
}

func (t *fakeTransport) UpdateSystemMemory(buf []byte, _, firstBlock int) error {
	return t.record(call{op: "system_memory", size: len(buf), block: firstBlock})
}

func (t *fakeTransport) ResetAll() error {
	return t.record(call{op: "reset"})
}

func (t *fakeTransport) ops() []string {
	var ops []string
	for _, c := range t.calls {
		ops = append(ops, c.op)
	}
	return ops
}

func fileSize(path string) int {
	fi, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return int(fi.Size())
}

type fakeCatalog struct {
	release   *catalog.Release
	latestErr error
	blobs     map[string][]byte
	fetched   []string
}

func newFakeCatalog(boot, firmware string) *fakeCatalog {
	return &fakeCatalog{
		release: &catalog.Release{
			Boot:     catalog.Artifact{Version: version.MustParse(boot), Ref: "boot.bin"},
			Firmware: catalog.Artifact{Version: version.MustParse(firmware), Ref: "firmware.bin"},
		},
		blobs: map[string][]byte{
			"boot.bin":     systemImage(3000),
			"firmware.bin": systemImage(5000),
		},
	}
}

func (c *fakeCatalog) Latest(context.Context) (*catalog.Release, error) {
	if c.latestErr != nil {
		return nil, c.latestErr
	}
	return c.release, nil
}

func (c *fakeCatalog) Fetch(_ context.Context, ref string) ([]byte, error) {
	c.fetched = append(c.fetched, ref)
	data, ok := c.blobs[ref]
	if !ok {
		return nil, catalog.ErrRemoteFetch
	}
	return data, nil
}

// fakePrompter answers from fields and otherwise behaves like Batch.
type fakePrompter struct {
	prompt.Batch

	confirm    bool
	confirmErr error
	savePath   string
	orgID      int
	deviceID   int
	apiKey     string

	bootOffers     int
	firmwareOffers int
	errorsShown    []error
}

func (p *fakePrompter) APIKey() (string, error) { return p.apiKey, nil }

func (p *fakePrompter) OrgID([]ota.Organization) (int, error) { return p.orgID, nil }

func (p *fakePrompter) DeviceID([]ota.Device) (int, error) { return p.deviceID, nil }

func (p *fakePrompter) ConfirmBootUpdate(_, _, _, _ version.Version) (bool, error) {
	p.bootOffers++
	return p.confirm, p.confirmErr
}

func (p *fakePrompter) ConfirmFirmwareUpdate(_, _ version.Version) (bool, error) {
	p.firmwareOffers++
	return p.confirm, p.confirmErr
}

func (p *fakePrompter) FirmwareSavePath(string) (string, error) { return p.savePath, nil }

func (p *fakePrompter) ShowError(err error) { p.errorsShown = append(p.errorsShown, err) }

type recorder struct {
	events []*notifier.StatusEvent
}

func (r *recorder) Notify(_ context.Context, ev *notifier.StatusEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close(context.Context) {}

func (r *recorder) states() []string {
	var s []string
	for _, ev := range r.events {
		s = append(s, ev.State)
	}
	return s
}

type fakeOTA struct {
	apiKey  string
	orgs    []ota.Organization
	devices []ota.Device
	err     error

	updated []int
}

func (f *fakeOTA) Me(context.Context) (*ota.User, error) { return &ota.User{ID: 1}, f.err }

func (f *fakeOTA) Organizations(context.Context, int) ([]ota.Organization, error) {
	return f.orgs, f.err
}

func (f *fakeOTA) Devices(context.Context, int) ([]ota.Device, error) { return f.devices, f.err }

func (f *fakeOTA) Update(_ context.Context, deviceID, orgID int, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, deviceID, orgID)
	return nil
}

var errBoom = errors.New("boom")

func systemImage(size int) []byte {
	buf := make([]byte, size)
	copy(buf[image.SystemTagOffset:], image.SystemTag)
	return buf
}

func writeImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

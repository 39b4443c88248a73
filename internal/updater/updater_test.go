package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/usb"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

var (
	primary = ids{usb.DefaultVendorID, usb.DefaultProductID}
	legacy  = ids{usb.LegacyVendorID, usb.LegacyProductID}
)

func currentDevice() version.Versions {
	return version.Versions{
		UserBoot:       version.New(1, 0, 0),
		SystemBoot:     version.New(1, 0, 0),
		SystemFirmware: version.New(2, 0, 0),
	}
}

type harness struct {
	usb      *fakeTransport
	catalog  *fakeCatalog
	prompter *fakePrompter
	events   *recorder
	run      *run
}

func newHarness(t *testing.T, cfg Config, tr *fakeTransport, cat *fakeCatalog) *harness {
	t.Helper()
	h := &harness{usb: tr, catalog: cat, prompter: &fakePrompter{confirm: true}, events: &recorder{}}

	opts := []Option{WithTransport(tr), WithPrompter(h.prompter), WithNotifier(h.events)}
	if cat != nil {
		opts = append(opts, WithCatalog(cat))
	}
	h.run = New(cfg, opts...).newRun()
	return h
}

func userConfig(t *testing.T) Config {
	return Config{
		Kind:        image.KindUser,
		ImageFile:   writeImage(t, "user.bin", make([]byte, 2500)),
		Method:      MethodUSB,
		CheckUpdate: true,
		RunID:       "run-1",
	}
}

func TestRunFallbackDiscovery(t *testing.T) {
	tr := newFakeTransport(legacy)
	h := newHarness(t, userConfig(t), tr, nil)

	require.NoError(t, h.run.start(context.Background()))

	vid, pid := tr.IDs()
	assert.Equal(t, legacy, ids{vid, pid})
	assert.Zero(t, tr.versionReads, "legacy bootloaders are not asked for versions")
	assert.Equal(t, []string{"user", "reset"}, tr.ops())
	assert.Equal(t, StateDone, h.run.state())
	assert.NotContains(t, h.events.states(), StateDeviceNotFound)
	assert.Equal(t, "7722:1200", h.events.events[0].Device)
}

func TestRunDeviceNotFound(t *testing.T) {
	tr := newFakeTransport()
	h := newHarness(t, userConfig(t), tr, nil)

	err := h.run.start(context.Background())

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Equal(t, StateDeviceNotFound, h.run.state())
	assert.Empty(t, tr.calls)
	assert.Equal(t, []string{StateDeviceNotFound}, h.events.states())
	assert.True(t, h.events.events[0].Final)
}

func TestRunBootThenFirmware(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	cat := newFakeCatalog("1.1.0", "2.0.0")
	h := newHarness(t, userConfig(t), tr, cat)
	h.prompter.savePath = filepath.Join(t.TempDir(), "saved.bin")

	require.NoError(t, h.run.start(context.Background()))

	assert.Equal(t, []call{
		{op: "system_memory", size: 3000, block: 0},
		{op: "system_memory", size: 5000, block: FirmwareBlock},
		{op: "user", size: 2500},
		{op: "reset"},
	}, tr.calls)
	assert.Equal(t, 1, h.prompter.bootOffers)
	assert.Equal(t, []string{
		StateDeviceDiscovered, StatePlanDecided, StateFlashingBoot, StateFlashingFirmware,
		StateFlashingUser, StateResetting, StateDone,
	}, h.events.states())

	saved, err := os.ReadFile(h.prompter.savePath)
	require.NoError(t, err)
	assert.Len(t, saved, BootRegionSize+5000)
}

func TestRunBootGateIsBothOrNothing(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	cat := newFakeCatalog("1.1.0", "2.0.0")
	cat.blobs["firmware.bin"] = make([]byte, 5000)
	h := newHarness(t, userConfig(t), tr, cat)

	err := h.run.start(context.Background())

	var rerr *RemoteFetchError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, image.ErrInvalidImageFile)
	assert.Empty(t, tr.calls, "no device writes when either image is rejected")
	assert.Equal(t, StateTransferFailed, h.run.state())
}

func TestRunDownloadFailureIsFatal(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	cat := newFakeCatalog("1.0.0", "2.1.0")
	delete(cat.blobs, "firmware.bin")
	h := newHarness(t, userConfig(t), tr, cat)

	err := h.run.start(context.Background())

	assert.ErrorIs(t, err, catalog.ErrRemoteFetch)
	assert.Contains(t, err.Error(), "Firmware could not be downloaded.")
	assert.Empty(t, tr.calls)
}

func TestRunFirmwareOnly(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	cat := newFakeCatalog("1.0.0", "2.1.0")
	h := newHarness(t, userConfig(t), tr, cat)

	require.NoError(t, h.run.start(context.Background()))

	assert.Equal(t, []call{
		{op: "system_memory", size: 5000, block: 0},
		{op: "user", size: 2500},
		{op: "reset"},
	}, tr.calls)
	assert.Equal(t, []string{"firmware.bin"}, cat.fetched)
	assert.Equal(t, 1, h.prompter.firmwareOffers)
}

func TestRunDeclinedOfferStillFlashesUser(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	cat := newFakeCatalog("1.1.0", "2.0.0")
	h := newHarness(t, userConfig(t), tr, cat)
	h.prompter.confirm = false

	require.NoError(t, h.run.start(context.Background()))

	assert.Empty(t, cat.fetched)
	assert.Equal(t, []string{"user", "reset"}, tr.ops())
	assert.Equal(t, NoAction, h.run.plan.Action)
	assert.Contains(t, h.events.states(), StateNoAction)
}

func TestRunConfirmationErrorEndsRun(t *testing.T) {
	for name, cat := range map[string]*fakeCatalog{
		"boot":     newFakeCatalog("1.1.0", "2.0.0"),
		"firmware": newFakeCatalog("1.0.0", "2.1.0"),
	} {
		t.Run(name, func(t *testing.T) {
			tr := newFakeTransport(primary)
			tr.versions = currentDevice()
			h := newHarness(t, userConfig(t), tr, cat)
			boom := errors.New("terminal went away")
			h.prompter.confirmErr = boom

			err := h.run.start(context.Background())
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, StateTransferFailed, h.run.state())
			assert.Empty(t, tr.calls)
			assert.Empty(t, cat.fetched)

			last := h.events.events[len(h.events.events)-1]
			assert.Equal(t, StateTransferFailed, last.State)
			assert.True(t, last.Final)
		})
	}
}

func TestRunManifestUnavailable(t *testing.T) {
	tr := newFakeTransport(primary)
	cat := newFakeCatalog("9.0.0", "9.0.0")
	cat.latestErr = catalog.ErrRemoteFetch
	h := newHarness(t, userConfig(t), tr, cat)

	require.NoError(t, h.run.start(context.Background()))
	assert.Equal(t, []string{"user", "reset"}, tr.ops())
	assert.Zero(t, h.prompter.bootOffers)
}

func TestRunUpdateCheckDisabled(t *testing.T) {
	tr := newFakeTransport(primary)
	cat := newFakeCatalog("9.0.0", "9.0.0")
	cfg := userConfig(t)
	cfg.CheckUpdate = false
	h := newHarness(t, cfg, tr, cat)

	require.NoError(t, h.run.start(context.Background()))
	assert.Equal(t, []string{"user", "reset"}, tr.ops())
	assert.Empty(t, cat.fetched)
}

func TestRunSystemImage(t *testing.T) {
	tr := newFakeTransport(primary)
	cat := newFakeCatalog("9.0.0", "9.0.0")
	cfg := Config{
		Kind:        image.KindSystem,
		ImageFile:   writeImage(t, "system.bin", systemImage(4096)),
		Method:      MethodUSB,
		CheckUpdate: true,
	}
	h := newHarness(t, cfg, tr, cat)

	require.NoError(t, h.run.start(context.Background()))
	assert.Equal(t, []call{{op: "system", size: 4096}, {op: "reset"}}, tr.calls)
	assert.Empty(t, cat.fetched)
	assert.Equal(t, FlashSystemImageDirect, h.run.plan.Action)
}

func TestRunTransferFailureAbandonsRemainingSteps(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.versions = currentDevice()
	tr.failOp = "system_memory"
	tr.failErr = &usb.BlockError{Tag: usb.TagSystem, Block: 1, Err: usb.ErrWriteRejected}
	h := newHarness(t, userConfig(t), tr, newFakeCatalog("1.1.0", "2.0.0"))

	err := h.run.start(context.Background())

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "flash boot", terr.Op)
	assert.ErrorIs(t, err, usb.ErrWriteRejected)
	assert.Contains(t, err.Error(), "did you push the program button?")
	assert.Empty(t, tr.calls, "neither user image nor reset after a failed step")
	assert.Equal(t, StateTransferFailed, h.run.state())
}

func TestRunRefusedResetIsNotFatal(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.failOp = "reset"
	tr.failErr = &usb.BlockError{Tag: usb.TagResetAll, Err: usb.ErrWriteRejected}
	h := newHarness(t, userConfig(t), tr, nil)

	require.NoError(t, h.run.start(context.Background()))
	assert.Equal(t, StateDone, h.run.state())
}

func TestRunResetOpenFailureIsFatal(t *testing.T) {
	tr := newFakeTransport(primary)
	tr.failOp = "reset"
	tr.failErr = errBoom
	h := newHarness(t, userConfig(t), tr, nil)

	err := h.run.start(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateTransferFailed, h.run.state())
}

func TestRunValidationFailed(t *testing.T) {
	tr := newFakeTransport(primary)
	cfg := Config{
		Kind:      image.KindSystem,
		ImageFile: writeImage(t, "bad.bin", make([]byte, 4096)),
		Method:    MethodUSB,
	}
	h := newHarness(t, cfg, tr, nil)

	err := h.run.start(context.Background())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid Image File", err.Error())
	assert.Equal(t, StateValidationFailed, h.run.state())
	assert.Empty(t, tr.calls)
}

func TestRunMissingParameters(t *testing.T) {
	userFile := writeImage(t, "user.bin", []byte("x"))

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"image type", Config{ImageFile: userFile, Method: MethodUSB}, "imagetype"},
		{"image file", Config{Kind: image.KindUser, Method: MethodUSB}, "imagefile"},
		{"method", Config{Kind: image.KindUser, ImageFile: userFile}, "method"},
		{"api key", Config{Kind: image.KindUser, ImageFile: userFile, Method: MethodOTA}, "apikey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New(tt.cfg, WithTransport(newFakeTransport(primary)), WithOTAClient(func(string) OTAClient { return &fakeOTA{} }))
			err := u.Run(context.Background())

			var mp *MissingParameterError
			require.ErrorAs(t, err, &mp)
			assert.Equal(t, tt.want, mp.Name)
			assert.True(t, IsMissingParameter(err))
		})
	}
}

func otaUpdater(t *testing.T, cfg Config, client *fakeOTA, p *fakePrompter) *Updater {
	cfg.Kind = image.KindUser
	cfg.ImageFile = writeImage(t, "user.bin", []byte("x"))
	cfg.Method = MethodOTA
	return New(cfg, WithPrompter(p), WithOTAClient(func(key string) OTAClient {
		client.apiKey = key
		return client
	}))
}

func TestRunOTASingleOrganization(t *testing.T) {
	client := &fakeOTA{
		orgs:    []ota.Organization{{ID: 3}},
		devices: []ota.Device{{ID: 10}, {ID: 11}},
	}
	p := &fakePrompter{apiKey: "key", deviceID: 11}

	require.NoError(t, otaUpdater(t, Config{}, client, p).Run(context.Background()))
	assert.Equal(t, "key", client.apiKey)
	assert.Equal(t, []int{11, 3}, client.updated)
}

func TestRunOTAConfiguredTarget(t *testing.T) {
	client := &fakeOTA{}
	cfg := Config{APIKey: "cfg-key", OrgID: 5, DeviceID: 9}

	require.NoError(t, otaUpdater(t, cfg, client, &fakePrompter{}).Run(context.Background()))
	assert.Equal(t, "cfg-key", client.apiKey)
	assert.Equal(t, []int{9, 5}, client.updated)
}

func TestRunOTADeviceWithoutOrganization(t *testing.T) {
	client := &fakeOTA{orgs: []ota.Organization{{ID: 7, Name: "solo"}}}
	cfg := Config{APIKey: "cfg-key", DeviceID: 9}

	require.NoError(t, otaUpdater(t, cfg, client, &fakePrompter{}).Run(context.Background()))
	assert.Equal(t, []int{9, 7}, client.updated, "the org is still looked up for a configured device")
}

func TestRunOTANoDevices(t *testing.T) {
	client := &fakeOTA{orgs: []ota.Organization{{ID: 3}}}
	err := otaUpdater(t, Config{APIKey: "k"}, client, &fakePrompter{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDevices)
	assert.Equal(t, "You have no devices in your account", err.Error())
}

func TestRunOTAOrganizationDeclined(t *testing.T) {
	client := &fakeOTA{orgs: []ota.Organization{{ID: 3}, {ID: 4}}}
	err := otaUpdater(t, Config{APIKey: "k"}, client, &fakePrompter{}).Run(context.Background())
	assert.True(t, IsMissingParameter(err))
}

func TestRunOTAUpdateFailure(t *testing.T) {
	client := &fakeOTA{err: ota.ErrAPI}
	err := otaUpdater(t, Config{APIKey: "k", OrgID: 1, DeviceID: 2}, client, &fakePrompter{}).Run(context.Background())
	assert.True(t, errors.Is(err, ota.ErrAPI))
}

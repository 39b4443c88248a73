// Package updater decides what a Dash needs and carries it out: boot and
// system firmware from the release catalog, then the caller's image, over USB
// or through the cloud API.
package updater

import (
	"context"
	"fmt"

	"github.com/hologram-io/dash-updater/internal/updater/catalog"
	"github.com/hologram-io/dash-updater/internal/updater/image"
	"github.com/hologram-io/dash-updater/internal/updater/notifier"
	"github.com/hologram-io/dash-updater/internal/updater/ota"
	"github.com/hologram-io/dash-updater/internal/updater/prompt"
	"github.com/hologram-io/dash-updater/internal/updater/version"
	"github.com/hologram-io/dash-updater/pkg/log"
)

// Transport is the device side of a USB run.
type Transport interface {
	SetIDs(vid, pid uint16)
	IDs() (vid, pid uint16)
	DevicePresent(vid, pid uint16) bool
	ReadVersions() (version.Versions, error)
	UpdateUser(path string) error
	UpdateSystem(path string) error
	UpdateSystemMemory(buf []byte, byteOffset, firstBlock int) error
	ResetAll() error
}

// OTAClient is the cloud side of an OTA run.
type OTAClient interface {
	Me(ctx context.Context) (*ota.User, error)
	Organizations(ctx context.Context, userID int) ([]ota.Organization, error)
	Devices(ctx context.Context, orgID int) ([]ota.Device, error)
	Update(ctx context.Context, deviceID, orgID int, path string) error
}

// OTAClientFunc builds an OTAClient once the api key is known.
type OTAClientFunc func(apiKey string) OTAClient

// Updater runs updates described by a fixed Config.
type Updater struct {
	cfg Config

	usb      Transport
	catalog  catalog.Catalog
	newOTA   OTAClientFunc
	prompter prompt.Prompter
	notifier notifier.Notifier
}

// Option configures an Updater.
type Option func(*Updater)

// WithTransport sets the USB transport. Required for USB runs.
func WithTransport(t Transport) Option {
	return func(u *Updater) { u.usb = t }
}

// WithCatalog sets the release catalog consulted before user images.
func WithCatalog(c catalog.Catalog) Option {
	return func(u *Updater) { u.catalog = c }
}

// WithOTAClient sets the factory of the cloud API client. Required for OTA
// runs.
func WithOTAClient(f OTAClientFunc) Option {
	return func(u *Updater) { u.newOTA = f }
}

// WithPrompter sets who answers questions. Defaults to a Batch prompter that
// declines everything.
func WithPrompter(p prompt.Prompter) Option {
	return func(u *Updater) { u.prompter = p }
}

// WithNotifier sets where status events go. Defaults to nowhere.
func WithNotifier(n notifier.Notifier) Option {
	return func(u *Updater) { u.notifier = n }
}

// New returns an Updater for cfg.
func New(cfg Config, opts ...Option) *Updater {
	u := &Updater{
		cfg:      cfg,
		prompter: &prompt.Batch{},
		notifier: notifier.Nop{},
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Config returns the configuration the Updater was built with.
func (u *Updater) Config() Config { return u.cfg }

// run is the mutable state of a single Run.
type run struct {
	u  *Updater
	id string

	kind   image.Kind
	file   string
	method Method

	device   string
	versions version.Versions
	plan     Plan
	flashed  bool

	machine *runMachine
}

// Run performs one update. Missing inputs are asked for; a declined question
// returns a MissingParameterError.
func (u *Updater) Run(ctx context.Context) error {
	return u.newRun().start(ctx)
}

func (u *Updater) newRun() *run {
	r := &run{u: u, id: u.cfg.RunID}
	r.machine = newRunMachine(r)
	return r
}

// state is the current state of the run. Only USB runs move past idle.
func (r *run) state() string { return r.machine.Current() }

func (r *run) start(ctx context.Context) error {
	u := r.u

	if err := r.resolveImage(); err != nil {
		return err
	}

	if err := image.Validate(r.kind, r.file); err != nil {
		verr := &ValidationError{Kind: r.kind, Path: r.file, Err: err}
		_ = r.machine.fire(ctx, EventInvalid, verr)
		return verr
	}

	r.method = u.cfg.Method
	if r.method == "" {
		m, err := u.prompter.Method(r.kind)
		if err != nil {
			return err
		}
		if m == "" {
			return &MissingParameterError{Name: "method"}
		}
		if r.method, err = ParseMethod(m); err != nil {
			return err
		}
	}

	log.Info("Starting update", "runID", r.id, "imageType", r.kind, "imageFile", r.file, "method", r.method)

	switch r.method {
	case MethodUSB:
		return r.runUSB(ctx)
	case MethodOTA:
		return r.runOTA(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMethod, r.method)
	}
}

func (r *run) resolveImage() error {
	u := r.u

	r.kind = u.cfg.Kind
	if r.kind == "" {
		k, err := u.prompter.ImageKind()
		if err != nil {
			return err
		}
		if k == "" {
			return &MissingParameterError{Name: "imagetype"}
		}
		r.kind = k
	}

	r.file = u.cfg.ImageFile
	if r.file == "" {
		f, err := u.prompter.ImageFile()
		if err != nil {
			return err
		}
		if f == "" || f == "." {
			return &MissingParameterError{Name: "imagefile"}
		}
		r.file = f
	}
	return nil
}

func (r *run) publish(ctx context.Context, ev *notifier.StatusEvent) {
	ev.RunID = r.id
	ev.Device = r.device
	ev.Plan = r.plan.String()
	ev.Timestamp = now()

	if err := r.u.notifier.Notify(ctx, ev); err != nil {
		log.Warn("Failed to publish status event", "runID", r.id, "state", ev.State, "err", err)
	}
}

func (r *run) planLabel() string {
	if r.method == MethodOTA {
		return string(MethodOTA)
	}
	if p := r.plan.String(); p != "" {
		return p
	}
	return "none"
}

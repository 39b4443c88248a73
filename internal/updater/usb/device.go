package usb

import (
	"fmt"
	"sync"

	hid "github.com/sstallion/go-hid"
)

// Device is an open HID channel to one physical device.
type Device interface {
	// Write sends one output report. A negative count signals a rejected write.
	Write(p []byte) (int, error)

	// GetFeatureReport reads a feature report; p[0] carries the report id on
	// input and the returned count includes it.
	GetFeatureReport(p []byte) (int, error)

	Close() error
}

// Opener opens a device by vendor and product id.
type Opener interface {
	Open(vid, pid uint16) (Device, error)
}

// OpenerFunc adapts a plain function to the Opener interface.
type OpenerFunc func(vid, pid uint16) (Device, error)

func (f OpenerFunc) Open(vid, pid uint16) (Device, error) { return f(vid, pid) }

// HIDOpener opens devices through hidapi.
type HIDOpener struct {
	once sync.Once
	err  error
}

var _ Opener = (*HIDOpener)(nil)

// NewHIDOpener returns an Opener backed by the system hidapi library.
func NewHIDOpener() *HIDOpener {
	return &HIDOpener{}
}

func (o *HIDOpener) Open(vid, pid uint16) (Device, error) {
	o.once.Do(func() {
		o.err = hid.Init()
	})
	if o.err != nil {
		return nil, fmt.Errorf("failed to initialize hidapi: %w", o.err)
	}

	d, err := hid.OpenFirst(vid, pid)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Close releases hidapi resources. The opener must not be used afterwards.
func (o *HIDOpener) Close() error {
	return hid.Exit()
}

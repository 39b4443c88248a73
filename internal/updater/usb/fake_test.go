package usb

import (
	"errors"
	"sync"
)

var errNoDevice = errors.New("no device")

// fakeDevice records every frame and can be told to fail at a given block.
type fakeDevice struct {
	mu sync.Mutex

	frames    [][]byte
	failAt    int // index of the write to reject, -1 for never
	failErr   error
	panicAt   int // index of the write that panics, -1 for never
	closed    int
	report    []byte
	reportErr error
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicAt >= 0 && len(d.frames) == d.panicAt {
		panic("device driver blew up")
	}
	if d.failAt >= 0 && len(d.frames) == d.failAt {
		d.frames = append(d.frames, nil)
		if d.failErr != nil {
			return 0, d.failErr
		}
		return -1, nil
	}
	d.frames = append(d.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (d *fakeDevice) GetFeatureReport(p []byte) (int, error) {
	if d.reportErr != nil {
		return 0, d.reportErr
	}
	return copy(p, d.report), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// fakeOpener hands out dev for the ids in present.
type fakeOpener struct {
	dev     *fakeDevice
	present map[[2]uint16]bool
	opens   int
}

func newFakeOpener(vid, pid uint16) *fakeOpener {
	return &fakeOpener{
		dev:     &fakeDevice{failAt: -1, panicAt: -1},
		present: map[[2]uint16]bool{{vid, pid}: true},
	}
}

func (o *fakeOpener) Open(vid, pid uint16) (Device, error) {
	if !o.present[[2]uint16{vid, pid}] {
		return nil, errNoDevice
	}
	o.opens++
	return o.dev, nil
}

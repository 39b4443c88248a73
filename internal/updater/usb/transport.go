// Package usb moves firmware payloads to a Dash over its HID block-transfer
// channel. Every operation opens the device, does exactly one thing and
// closes it again; no handle outlives the call that opened it.
package usb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/hologram-io/dash-updater/internal/pkg/metrics"
	"github.com/hologram-io/dash-updater/internal/updater/version"
)

const (
	DefaultVendorID  uint16 = 0x2cf3
	DefaultProductID uint16 = 0x1100

	// LegacyVendorID and LegacyProductID identify older bootloaders, which
	// also use the legacy framing variant.
	LegacyVendorID  uint16 = 0x7722
	LegacyProductID uint16 = 0x1200

	// BlockSize is the payload carried by a single frame. Block n lands at
	// destination address n*BlockSize.
	BlockSize = 1024

	TagUser     byte = 0x18
	TagSystem   byte = 0x3C
	TagResetAll byte = 0xFC

	outputReportID      = 0x33
	versionReportLength = 64

	// ResetSettleDelay is how long the device is left alone after a reset
	// frame before the handle is closed. Closing earlier leaves some units
	// stuck in the bootloader.
	ResetSettleDelay = 2 * time.Second
)

var (
	// ErrWriteRejected is returned when the device does not accept a frame.
	ErrWriteRejected = errors.New("device rejected write")

	// ErrVersionsUndetermined is returned when the device did not answer the
	// version report with a decodable payload.
	ErrVersionsUndetermined = errors.New("device versions could not be determined")

	// ErrInvalidOffset is returned for a negative payload offset.
	ErrInvalidOffset = errors.New("invalid payload offset")
)

// BlockError reports the block at which a write sequence stopped.
type BlockError struct {
	Tag   byte
	Block int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d to %#x: %v", e.Block, e.Tag, e.Err)
}

func (e *BlockError) Unwrap() error { return e.Err }

// Transport is the block-transfer client of a single device.
type Transport struct {
	vid uint16
	pid uint16

	opener Opener
	clock  clock.Clock
	logger logr.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithClock replaces the clock used for the reset settle delay.
func WithClock(c clock.Clock) Option {
	return func(t *Transport) { t.clock = c }
}

// WithLogger sets the logger used for per-block tracing.
func WithLogger(l logr.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// NewTransport returns a Transport addressing (vid, pid) through opener.
func NewTransport(opener Opener, vid, pid uint16, opts ...Option) *Transport {
	t := &Transport{
		vid:    vid,
		pid:    pid,
		opener: opener,
		clock:  clock.RealClock{},
		logger: logr.Discard(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetIDs switches the active vendor and product id.
func (t *Transport) SetIDs(vid, pid uint16) {
	t.vid, t.pid = vid, pid
}

// IDs returns the active vendor and product id.
func (t *Transport) IDs() (vid, pid uint16) {
	return t.vid, t.pid
}

// DevicePresent reports whether (vid, pid) can be opened.
func (t *Transport) DevicePresent(vid, pid uint16) bool {
	dev, err := t.opener.Open(vid, pid)
	if err != nil {
		t.logger.V(1).Info("device not present", "vid", vid, "pid", pid, "reason", err.Error())
		return false
	}
	_ = dev.Close()
	return true
}

// session is one open device plus the framing chosen for it.
type session struct {
	dev     Device
	framing Framing
}

func (t *Transport) open() (*session, error) {
	dev, err := t.opener.Open(t.vid, t.pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %04x:%04x: %w", t.vid, t.pid, err)
	}
	return &session{dev: dev, framing: FramingFor(t.vid)}, nil
}

func (s *session) close(logger logr.Logger) {
	if err := s.dev.Close(); err != nil {
		logger.Error(err, "failed to close device")
	}
}

func (s *session) write(frame []byte) error {
	n, err := s.dev.Write(frame)
	if err != nil {
		return err
	}
	if n < 0 {
		return ErrWriteRejected
	}
	return nil
}

// WriteMemory sends buf[byteOffset:] as consecutive blocks to tag, numbering
// them from firstBlock. It returns nil only when the whole payload was
// accepted.
func (t *Transport) WriteMemory(buf []byte, tag byte, byteOffset, firstBlock int) error {
	if byteOffset < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, byteOffset)
	}
	if byteOffset > len(buf) {
		byteOffset = len(buf)
	}
	t.logger.V(1).Info("writing memory blocks", "bytes", len(buf), "tag", tag, "offset", byteOffset, "firstBlock", firstBlock)
	return t.writeBlocks(bytes.NewReader(buf[byteOffset:]), tag, firstBlock)
}

// WriteFile sends the file at path, starting at byteOffset, as consecutive
// blocks to tag. Failing to open or seek the file is returned before the
// device is touched.
func (t *Transport) WriteFile(path string, tag byte, byteOffset, firstBlock int) error {
	if byteOffset < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOffset, byteOffset)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(int64(byteOffset), io.SeekStart); err != nil {
		return err
	}

	t.logger.V(1).Info("writing file blocks", "path", path, "tag", tag, "offset", byteOffset, "firstBlock", firstBlock)
	return t.writeBlocks(f, tag, firstBlock)
}

func (t *Transport) writeBlocks(r io.Reader, tag byte, firstBlock int) error {
	s, err := t.open()
	if err != nil {
		return err
	}
	defer s.close(t.logger)

	start := time.Now()
	label := fmt.Sprintf("%#x", tag)
	chunk := make([]byte, BlockSize)

	for block := firstBlock; ; block++ {
		n, err := io.ReadFull(r, chunk)
		if n == 0 && (err == io.EOF || err == nil) {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			metrics.BlockWriteFailures.WithLabelValues(label).Inc()
			return &BlockError{Tag: tag, Block: block, Err: err}
		}

		if err := s.write(s.framing.Frame(tag, block, chunk[:n])); err != nil {
			t.logger.V(1).Info("block write failed", "block", block, "tag", label, "reason", err.Error())
			metrics.BlockWriteFailures.WithLabelValues(label).Inc()
			return &BlockError{Tag: tag, Block: block, Err: err}
		}
		t.logger.V(2).Info("block written", "block", block, "tag", label)
		metrics.BlocksWritten.WithLabelValues(label).Inc()
	}

	metrics.FlashDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return nil
}

// ReadVersions asks the device for its version report. When the report is
// missing, short or mistagged, the zero sentinel is returned together with
// an error wrapping ErrVersionsUndetermined.
func (t *Transport) ReadVersions() (version.Versions, error) {
	s, err := t.open()
	if err != nil {
		return version.Versions{}, fmt.Errorf("%w: %v", ErrVersionsUndetermined, err)
	}
	defer s.close(t.logger)

	buf := make([]byte, versionReportLength)
	buf[0] = version.ReportID
	n, err := s.dev.GetFeatureReport(buf)
	if err != nil {
		return version.Versions{}, fmt.Errorf("%w: %v", ErrVersionsUndetermined, err)
	}
	if n < version.ReportSize || buf[0] != version.ReportID {
		return version.Versions{}, fmt.Errorf("%w: got %d byte report tagged %#x", ErrVersionsUndetermined, max(n, 0), buf[0])
	}

	vs := version.DecodeVersions(buf[:n])
	t.logger.V(1).Info("read device versions", "versions", vs.String())
	return vs, nil
}

// Reset asks the device to reset the module identified by tag. The settle
// delay is always observed, also when the device could not be opened or
// refused the frame.
func (t *Transport) Reset(tag byte) error {
	s, err := t.open()
	if err != nil {
		t.clock.Sleep(ResetSettleDelay)
		return err
	}
	defer s.close(t.logger)
	defer t.clock.Sleep(ResetSettleDelay)

	if err := s.write(s.framing.ResetFrame(tag)); err != nil {
		return &BlockError{Tag: tag, Err: err}
	}
	return nil
}

// UpdateUser writes the file at path to the user module.
func (t *Transport) UpdateUser(path string) error {
	return t.WriteFile(path, TagUser, 0, 0)
}

// UpdateSystem writes the file at path to the system module.
func (t *Transport) UpdateSystem(path string) error {
	return t.WriteFile(path, TagSystem, 0, 0)
}

// UpdateSystemMemory writes buf to the system module starting at firstBlock.
func (t *Transport) UpdateSystemMemory(buf []byte, byteOffset, firstBlock int) error {
	return t.WriteMemory(buf, TagSystem, byteOffset, firstBlock)
}

// ResetAll resets every module on the device.
func (t *Transport) ResetAll() error {
	return t.Reset(TagResetAll)
}

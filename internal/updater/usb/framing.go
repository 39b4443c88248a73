package usb

// Framing describes how a payload chunk is wrapped into a HID output report.
// One Framing is chosen per device session from the active vendor id.
type Framing struct {
	// header is the number of bytes preceding the payload.
	header int
	// reportID is written at offset 0 when non-zero.
	reportID byte
	// tagOffsets lists where the destination tag is written.
	tagOffsets []int
	// indexOffset is where the little-endian 16-bit block index starts.
	indexOffset int
}

var (
	// legacyFraming is used by devices enumerating with LegacyVendorID.
	legacyFraming = Framing{
		header:      65,
		tagOffsets:  []int{1, 4},
		indexOffset: 5,
	}

	// defaultFraming is used by every other vendor id.
	defaultFraming = Framing{
		header:      4,
		reportID:    outputReportID,
		tagOffsets:  []int{1},
		indexOffset: 2,
	}
)

// FramingFor returns the framing variant for vid.
func FramingFor(vid uint16) Framing {
	if vid == LegacyVendorID {
		return legacyFraming
	}
	return defaultFraming
}

// Header returns the number of bytes preceding the payload in a frame.
func (f Framing) Header() int { return f.header }

// Frame wraps payload for destination tag at the given block index.
func (f Framing) Frame(tag byte, block int, payload []byte) []byte {
	frame := make([]byte, f.header+len(payload))
	f.stamp(frame, tag)
	frame[f.indexOffset] = byte(block)
	frame[f.indexOffset+1] = byte(block >> 8)
	copy(frame[f.header:], payload)
	return frame
}

// ResetFrame returns the all-zero, full-block frame that asks the device to
// reset the module identified by tag.
func (f Framing) ResetFrame(tag byte) []byte {
	frame := make([]byte, f.header+BlockSize)
	f.stamp(frame, tag)
	return frame
}

func (f Framing) stamp(frame []byte, tag byte) {
	if f.reportID != 0 {
		frame[0] = f.reportID
	}
	for _, off := range f.tagOffsets {
		frame[off] = tag
	}
}

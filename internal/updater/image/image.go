// Package image checks that a candidate firmware image is plausible for the
// module it is about to be flashed to.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// Kind identifies the module an image targets.
type Kind string

const (
	// KindUser is end-user application firmware.
	KindUser Kind = "user"
	// KindSystem is the device firmware and bootloader stack.
	KindSystem Kind = "system"
)

// Kinds lists every supported Kind in prompt order.
var Kinds = []Kind{KindUser, KindSystem}

var (
	ErrInvalidImageType = errors.New("invalid image type")
	ErrInvalidImageFile = errors.New("invalid image file")
)

const (
	// SystemTagOffset is where a system image carries its magic tag.
	SystemTagOffset = 0xC0
)

// SystemTag is the magic tag every system image carries at SystemTagOffset.
var SystemTag = []byte("APP0DPM2")

// ParseKind converts s to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindUser, KindSystem:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidImageType, s)
	}
}

// ValidateSystemFile reports whether the file at path carries the system tag.
// Open, seek and short-read errors are returned to the caller.
func ValidateSystemFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	got := make([]byte, len(SystemTag))
	if _, err := f.ReadAt(got, SystemTagOffset); err != nil {
		if errors.Is(err, io.EOF) {
			return false, fmt.Errorf("%s: file too short for a system image: %w", path, io.ErrUnexpectedEOF)
		}
		return false, err
	}

	return bytes.Equal(got, SystemTag), nil
}

// ValidateSystemMemory reports whether buf carries the system tag. It never
// fails: a short or nil buffer is simply not a valid system image.
func ValidateSystemMemory(buf []byte) bool {
	end := SystemTagOffset + len(SystemTag)
	if len(buf) < end {
		return false
	}
	return bytes.Equal(buf[SystemTagOffset:end], SystemTag)
}

// ValidateUserFile reports whether path names an existing regular file.
// The content is never inspected so that images built by any toolchain can
// be pushed to the user module.
func ValidateUserFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Validate checks the image at path for the given kind.
func Validate(kind Kind, path string) error {
	var valid bool

	switch kind {
	case KindUser:
		valid = ValidateUserFile(path)
	case KindSystem:
		ok, err := ValidateSystemFile(path)
		if err != nil {
			return err
		}
		valid = ok
	default:
		return fmt.Errorf("%w: %q", ErrInvalidImageType, kind)
	}

	if !valid {
		return fmt.Errorf("%w: %s", ErrInvalidImageFile, path)
	}
	return nil
}

// Package version models the three-component firmware versions reported by a
// Dash device and advertised by the firmware catalog.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is returned when a version string is not made of three
// dot-separated integers.
var ErrParse = errors.New("malformed version")

// Version is an immutable major.minor.revision triple. Each component is
// masked to 8 bits, and ordering follows the packed 24-bit value.
type Version struct {
	major    uint8
	minor    uint8
	revision uint8
}

// New builds a Version. Components outside [0,255] are silently masked.
func New(major, minor, revision int) Version {
	return Version{
		major:    uint8(major & 0xFF),
		minor:    uint8(minor & 0xFF),
		revision: uint8(revision & 0xFF),
	}
}

// FromBytes builds a Version from the first three bytes of b.
func FromBytes(b []byte) Version {
	return Version{major: b[0], minor: b[1], revision: b[2]}
}

// Parse reads a "major.minor.revision" string.
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w %q: want 3 components, got %d", ErrParse, s, len(parts))
	}

	var c [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w %q: %v", ErrParse, s, err)
		}
		c[i] = n
	}

	return New(c[0], c[1], c[2]), nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) Major() int    { return int(v.major) }
func (v Version) Minor() int    { return int(v.minor) }
func (v Version) Revision() int { return int(v.revision) }

// Int packs the version as (major<<16)|(minor<<8)|revision.
func (v Version) Int() uint32 {
	return uint32(v.major)<<16 | uint32(v.minor)<<8 | uint32(v.revision)
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	a, b := v.Int(), o.Int()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) Less(o Version) bool           { return v.Int() < o.Int() }
func (v Version) LessOrEqual(o Version) bool    { return v.Int() <= o.Int() }
func (v Version) Equal(o Version) bool          { return v.Int() == o.Int() }
func (v Version) NotEqual(o Version) bool       { return v.Int() != o.Int() }
func (v Version) Greater(o Version) bool        { return v.Int() > o.Int() }
func (v Version) GreaterOrEqual(o Version) bool { return v.Int() >= o.Int() }

// IsZero reports whether v is 0.0.0.
func (v Version) IsZero() bool { return v.Int() == 0 }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.revision)
}

// Min returns the smaller of a and b.
func Min(a, b Version) Version {
	if b.Less(a) {
		return b
	}
	return a
}

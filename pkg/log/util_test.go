package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type stringer struct{}

func (stringer) String() string { return "1.2.3" }

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		want  int
	}{
		{"empty input", []any{}, 0},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, 3},
		{"time type", []any{"t", now}, 1},
		{"bytes", []any{"data", []byte("xyz")}, 1},
		{"error only", []any{err}, 1},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, 3},
		{"odd number of args", []any{"key1", "val1", "key2"}, 2},
		{"non-string key", []any{123, "value"}, 1},
		{"stringer", []any{"version", stringer{}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			assert.Len(t, fields, tt.want)
			for _, f := range fields {
				assert.NotEmpty(t, f.Key, "field has empty key: %+v", f)
			}
		})
	}
}

func TestHex(t *testing.T) {
	f := Hex("vid", uint16(0x2cf3))
	assert.Equal(t, zapcore.StringType, f.Type)
	assert.Equal(t, "0x2cf3", f.String)
}

func TestOptionsComplete(t *testing.T) {
	o := NewOptions()
	o.Debug = true
	o.Complete()
	assert.Equal(t, "debug", o.Level)
	assert.False(t, o.DisableCaller)
	assert.Empty(t, o.Validate())

	o.Format = "xml"
	assert.Len(t, o.Validate(), 1)
}

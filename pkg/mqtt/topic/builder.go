package topic

import (
	"fmt"
)

// Topic segments published by dash-updater. Consumers subscribe to these, so
// changing them breaks existing dashboards.
const (
	// SuffixStatus carries one event per orchestrator state transition.
	// Structure: {root}/status/{runID}
	SuffixStatus = "status"

	// SuffixResult carries the retained final outcome of a run, keyed by
	// device. Structure: {root}/result/{deviceKey}
	SuffixResult = "result"

	// Wildcard matches exactly one topic level.
	Wildcard = "+"
)

// Builder encapsulates the logic for constructing MQTT topic strings.
type Builder struct {
	// root is the base namespace for all topics (e.g., "dash-updater/v1").
	root string
}

// NewBuilder creates a new Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Status returns the topic receiving transition events of one run.
func (b *Builder) Status(runID string) string {
	return b.build(SuffixStatus, runID)
}

// StatusWildcard matches the status topics of every run.
func (b *Builder) StatusWildcard() string {
	return b.build(SuffixStatus, Wildcard)
}

// Result returns the retained outcome topic of a device.
func (b *Builder) Result(deviceKey string) string {
	return b.build(SuffixResult, deviceKey)
}

func (b *Builder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}

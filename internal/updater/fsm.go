package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/hologram-io/dash-updater/internal/pkg/metrics"
	fsmutil "github.com/hologram-io/dash-updater/internal/pkg/util/fsm"
	"github.com/hologram-io/dash-updater/internal/updater/notifier"
	"github.com/hologram-io/dash-updater/pkg/log"
)

// States of a USB update run.
const (
	StateIdle                = "idle"
	StateDeviceDiscovered    = "device_discovered"
	StatePlanDecided         = "plan_decided"
	StateFlashingBoot        = "flashing_boot"
	StateFlashingFirmware    = "flashing_firmware"
	StateFlashingUser        = "flashing_user"
	StateFlashingSystemImage = "flashing_system_image"
	StateNoAction            = "no_action"
	StateResetting           = "resetting"
	StateDone                = "done"

	StateDeviceNotFound   = "device_not_found"
	StateValidationFailed = "validation_failed"
	StateTransferFailed   = "transfer_failed"
)

const (
	EventDiscover      = "event_discover"
	EventNotFound      = "event_not_found"
	EventInvalid       = "event_invalid"
	EventDecide        = "event_decide"
	EventFlashBoot     = "event_flash_boot"
	EventFlashFirmware = "event_flash_firmware"
	EventFlashSystem   = "event_flash_system"
	EventSkip          = "event_skip"
	EventFlashUser     = "event_flash_user"
	EventReset         = "event_reset"
	EventFinish        = "event_finish"
	EventFail          = "event_fail"
)

// IsTerminal reports whether no transition leaves state.
func IsTerminal(state string) bool {
	switch state {
	case StateDone, StateDeviceNotFound, StateValidationFailed, StateTransferFailed:
		return true
	}
	return false
}

// runMachine tracks one run. Transitions are driven by the run; callbacks
// only observe them.
type runMachine struct {
	*fsm.FSM

	run *run
}

func newRunMachine(r *run) *runMachine {
	m := &runMachine{run: r}

	events := fsm.Events{
		{Name: EventDiscover, Src: []string{StateIdle}, Dst: StateDeviceDiscovered},
		{Name: EventNotFound, Src: []string{StateIdle}, Dst: StateDeviceNotFound},
		{Name: EventInvalid, Src: []string{StateIdle}, Dst: StateValidationFailed},
		{Name: EventDecide, Src: []string{StateDeviceDiscovered}, Dst: StatePlanDecided},

		{Name: EventFlashBoot, Src: []string{StatePlanDecided}, Dst: StateFlashingBoot},
		{Name: EventFlashFirmware, Src: []string{StatePlanDecided, StateFlashingBoot}, Dst: StateFlashingFirmware},
		{Name: EventFlashSystem, Src: []string{StatePlanDecided}, Dst: StateFlashingSystemImage},
		{Name: EventSkip, Src: []string{StatePlanDecided}, Dst: StateNoAction},
		{Name: EventFlashUser, Src: []string{StateFlashingFirmware, StateNoAction}, Dst: StateFlashingUser},

		{Name: EventReset, Src: []string{StateFlashingFirmware, StateFlashingUser, StateFlashingSystemImage}, Dst: StateResetting},
		{Name: EventFinish, Src: []string{StateResetting, StateNoAction}, Dst: StateDone},

		{Name: EventFail, Src: []string{
			StateDeviceDiscovered, StatePlanDecided, StateFlashingBoot, StateFlashingFirmware,
			StateFlashingUser, StateFlashingSystemImage, StateResetting,
		}, Dst: StateTransferFailed},
	}

	callbacks := fsm.Callbacks{
		// Guards
		"before_" + EventReset: fsmutil.WrapEvent(m.GuardFlashed),

		// Side-Effects
		"enter_state": fsmutil.WrapEvent(m.ActionObserve),
	}

	m.FSM = fsm.NewFSM(StateIdle, events, callbacks)
	return m
}

// GuardFlashed cancels the reset when nothing was written to the device.
func (m *runMachine) GuardFlashed(ctx context.Context, e *fsm.Event) error {
	if !m.run.flashed {
		e.Cancel(errNothingFlashed)
	}
	return nil
}

var errNothingFlashed = errors.New("nothing flashed")

// ActionObserve logs, publishes and counts every state entered.
func (m *runMachine) ActionObserve(ctx context.Context, e *fsm.Event) error {
	r := m.run
	msg := eventMessage(e.Args)
	final := IsTerminal(e.Dst)

	kv := []any{"runID", r.id, "from", e.Src, "to", e.Dst}
	if plan := r.plan.String(); plan != "" {
		kv = append(kv, "plan", plan)
	}
	if msg != "" {
		kv = append(kv, "message", msg)
	}
	log.Debug("Update state changed", kv...)

	if final {
		metrics.RunsTotal.WithLabelValues(r.planLabel(), e.Dst).Inc()
	}

	r.publish(ctx, &notifier.StatusEvent{
		State:   e.Dst,
		Message: msg,
		Final:   final,
	})
	return nil
}

// fire moves the machine along event. args[0], if present, is a message
// string or an error attached to the status event.
func (m *runMachine) fire(ctx context.Context, event string, args ...any) error {
	err := m.Event(ctx, event, args...)
	switch {
	case err == nil:
		return nil
	case fsmutil.IsCanceled(err):
		return err
	default:
		return fmt.Errorf("update state machine: %s from %s: %w", event, m.Current(), err)
	}
}

func eventMessage(args []any) string {
	if len(args) == 0 || args[0] == nil {
		return ""
	}
	switch v := args[0].(type) {
	case error:
		return Detail(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func now() time.Time { return time.Now().UTC() }

package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error returning callback to fsm.Callback. A non-nil
// error is stored on the event so that FSM.Event returns it.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsCanceled reports whether err comes from a guard that called Cancel.
func IsCanceled(err error) bool {
	var canceled fsm.CanceledError
	return errors.As(err, &canceled)
}

package updater

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hologram-io/dash-updater/internal/updater/image"
)

const helpFooter = "Contact us or visit the forum at community.hologram.io if you need help"

var (
	// ErrDeviceNotFound is wrapped by the TransportError returned when neither
	// the configured nor the legacy ids answer.
	ErrDeviceNotFound = errors.New("no device found")

	// ErrNoDevices is returned when an OTA account has nothing to update.
	ErrNoDevices = errors.New("You have no devices in your account")

	// ErrInvalidMethod is returned for an update method other than usb or ota.
	ErrInvalidMethod = errors.New("Invalid Update Method")
)

// MissingParameterError reports a required input that was neither configured
// nor supplied by the prompter. It ends the run without counting as a failure.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return "missing parameter: " + e.Name
}

// ValidationError reports an image rejected before any device I/O.
type ValidationError struct {
	Kind image.Kind
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, image.ErrInvalidImageType):
		return "Invalid Image Type"
	case errors.Is(e.Err, image.ErrInvalidImageFile):
		return "Invalid Image File"
	default:
		return fmt.Sprintf("Error opening file: %v", e.Err)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError reports a failed device step. Op names the step.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return strings.Join([]string{
		"Error updating over USB.",
		"Is the correct Dash connected and did you push the program button?",
		helpFooter,
	}, "\n")
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteFetchError reports a firmware download that failed, or produced an
// image that is not a system image, inside an already chosen plan.
type RemoteFetchError struct {
	Ref string
	Err error
}

func (e *RemoteFetchError) Error() string {
	return strings.Join([]string{
		"Error updating over USB.",
		"Firmware could not be downloaded.",
		helpFooter,
	}, "\n")
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// IsMissingParameter reports whether err ends the run without failure.
func IsMissingParameter(err error) bool {
	var mp *MissingParameterError
	return errors.As(err, &mp)
}

// Detail returns the innermost cause of err for debug output. The user
// facing errors above hide it behind a fixed help text.
func Detail(err error) string {
	var (
		te *TransportError
		re *RemoteFetchError
	)
	switch {
	case errors.As(err, &te) && te.Err != nil:
		return te.Op + ": " + te.Err.Error()
	case errors.As(err, &re) && re.Err != nil:
		return re.Err.Error()
	default:
		return err.Error()
	}
}

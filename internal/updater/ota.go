package updater

import (
	"context"
	"errors"
	"fmt"

	"github.com/hologram-io/dash-updater/internal/pkg/metrics"
	"github.com/hologram-io/dash-updater/internal/updater/notifier"
	"github.com/hologram-io/dash-updater/pkg/log"
)

// States published for OTA runs. The device is not reachable from here, so
// the USB state machine is not used.
const (
	StateOTAUploading = "ota_uploading"
	StateOTASent      = "ota_sent"
)

func (r *run) runOTA(ctx context.Context) error {
	u := r.u
	if u.newOTA == nil {
		return errors.New("no ota client configured")
	}

	key := u.cfg.APIKey
	if key == "" {
		k, err := u.prompter.APIKey()
		if err != nil {
			return err
		}
		if k == "" {
			return &MissingParameterError{Name: "apikey"}
		}
		key = k
	}
	client := u.newOTA(key)

	orgID := u.cfg.OrgID
	if orgID == 0 {
		me, err := client.Me(ctx)
		if err != nil {
			return err
		}
		orgs, err := client.Organizations(ctx, me.ID)
		if err != nil {
			return err
		}
		if len(orgs) == 1 {
			orgID = orgs[0].ID
		} else if orgID, err = u.prompter.OrgID(orgs); err != nil {
			return err
		}
	}

	deviceID := u.cfg.DeviceID
	if deviceID == 0 {
		if orgID == 0 {
			return &MissingParameterError{Name: "orgid"}
		}
		devices, err := client.Devices(ctx, orgID)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return ErrNoDevices
		}
		if deviceID, err = u.prompter.DeviceID(devices); err != nil {
			return err
		}
		if deviceID == 0 {
			return &MissingParameterError{Name: "deviceid"}
		}
	}

	r.device = fmt.Sprintf("ota:%d", deviceID)
	log.Debug("Resolved OTA target", "orgID", orgID, "deviceID", deviceID)
	r.publish(ctx, &notifier.StatusEvent{State: StateOTAUploading})

	if err := client.Update(ctx, deviceID, orgID, r.file); err != nil {
		r.endOTA(ctx, StateTransferFailed, err.Error())
		return err
	}

	r.endOTA(ctx, StateOTASent, "")
	return nil
}

func (r *run) endOTA(ctx context.Context, state, msg string) {
	metrics.RunsTotal.WithLabelValues(r.planLabel(), state).Inc()
	r.publish(ctx, &notifier.StatusEvent{State: state, Message: msg, Final: true})
}

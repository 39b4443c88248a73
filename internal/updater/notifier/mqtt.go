package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	pkgmqtt "github.com/hologram-io/dash-updater/pkg/mqtt"
	mqtttopic "github.com/hologram-io/dash-updater/pkg/mqtt/topic"
	"github.com/hologram-io/dash-updater/pkg/log"
	"github.com/hologram-io/dash-updater/pkg/options"
)

// MQTTNotifier publishes every event to {root}/status/{runID}, and the final
// event of a run, retained, to {root}/result/{device}.
type MQTTNotifier struct {
	client pkgmqtt.Client
	topics *mqtttopic.Builder
}

var _ Notifier = (*MQTTNotifier)(nil)

// NewMQTTNotifier connects to the broker in opts. It waits for the first
// connection at most opts.ConnectTimeout.
func NewMQTTNotifier(ctx context.Context, opts *options.MqttOptions, runID string) (*MQTTNotifier, error) {
	cfg := opts.ToClientConfig()
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("dash-updater-%s", runID)
	}

	client, err := pkgmqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return newMQTTNotifier(ctx, client, mqtttopic.NewBuilder(opts.TopicRoot), opts)
}

func newMQTTNotifier(ctx context.Context, client pkgmqtt.Client, topics *mqtttopic.Builder, opts *options.MqttOptions) (*MQTTNotifier, error) {
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start mqtt client: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.AwaitConnection(waitCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", opts.Broker, err)
	}

	return &MQTTNotifier{client: client, topics: topics}, nil
}

func (n *MQTTNotifier) Notify(ctx context.Context, ev *StatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := n.client.Publish(ctx, n.topics.Status(ev.RunID), 1, false, payload); err != nil {
		return err
	}

	if ev.Final && ev.Device != "" {
		return n.client.Publish(ctx, n.topics.Result(ev.Device), 1, true, payload)
	}
	return nil
}

func (n *MQTTNotifier) Close(ctx context.Context) {
	n.client.Disconnect(ctx)
	log.Debug("Status notifier closed")
}

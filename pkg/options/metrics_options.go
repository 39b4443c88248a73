package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MetricsOptions)(nil)

// MetricsOptions controls the export of run metrics.
type MetricsOptions struct {
	// Textfile, when set, receives the metrics of the run in the Prometheus
	// text format once the run is over.
	Textfile string `json:"textfile" mapstructure:"textfile"`

	// BindAddress serves /metrics and /healthz while a long running command
	// (watch) is active. Empty disables the server.
	BindAddress string `json:"bind-address" mapstructure:"bind-address"`
}

func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{}
}

func (o *MetricsOptions) Validate() []error {
	var errs []error
	if o.BindAddress != "" {
		if _, _, err := net.SplitHostPort(o.BindAddress); err != nil {
			errs = append(errs, fmt.Errorf("--metrics.bind-address %q: %w", o.BindAddress, err))
		}
	}
	return errs
}

func (o *MetricsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Textfile, "metrics.textfile", o.Textfile, "Write run metrics to this file (node_exporter textfile format).")
	fs.StringVar(&o.BindAddress, "metrics.bind-address", o.BindAddress, "Address the watch command serves /metrics and /healthz on, e.g. :9464. Empty disables it.")
}

package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const configFlagName = "config"

func (a *App) addConfigFlag(fs *pflag.FlagSet) {
	name := a.name
	fs.StringVarP(&a.cfgFile, configFlagName, "c", a.cfgFile, fmt.Sprintf("Read %s flags from this file (yaml, json or toml). Flags on the command line take precedence.", name))
}

// loadConfig fills every flag not given on the command line from the
// environment or the config file, in that order.
func (a *App) loadConfig(fs *pflag.FlagSet) error {
	v := a.viper

	if a.envPrefix != "" {
		v.SetEnvPrefix(a.envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}

	if !a.noConfig && a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %s: %w", a.cfgFile, err)
		}
	}

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == configFlagName {
			return
		}
		if a.envPrefix != "" {
			// AutomaticEnv only answers for keys viper knows about.
			_ = v.BindEnv(f.Name)
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, valueString(v.Get(f.Name))); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func valueString(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(v)
	}
}

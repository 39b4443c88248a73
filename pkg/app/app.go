// Package app builds the cobra command of a binary from its options.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
	"k8s.io/component-base/term"
)

// NamedFlagSetOptions is implemented by the options of every binary.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived values after flags and configuration are
	// parsed.
	Complete() error

	// Validate reports every invalid value at once.
	Validate() error
}

// RunFunc is the body of a command, run after options are complete and
// valid.
type RunFunc func() error

// App is a command line application.
type App struct {
	name        string
	shortDesc   string
	description string
	version     string
	envPrefix   string
	noConfig    bool
	cfgFile     string

	options  NamedFlagSetOptions
	runFunc  RunFunc
	args     cobra.PositionalArgs
	commands []*cobra.Command

	viper *viper.Viper
	cmd   *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions sets the options whose flags the command exposes.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the command body.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithVersion enables --version.
func WithVersion(version string) Option {
	return func(a *App) { a.version = version }
}

// WithEnvPrefix reads flag values from environment variables named
// PREFIX_FLAG_NAME, dots and dashes replaced by underscores.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) { a.envPrefix = prefix }
}

// WithNoConfig drops the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// WithSubCommands adds commands below the root command.
func WithSubCommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.commands = append(a.commands, cmds...) }
}

// NewApp builds the command of application name.
func NewApp(name, shortDesc string, opts ...Option) *App {
	a := &App{name: name, shortDesc: shortDesc, viper: viper.New()}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the root command.
func (a *App) Command() *cobra.Command { return a.cmd }

// Run executes the command line of the process.
func (a *App) Run() error { return a.cmd.Execute() }

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	if a.version != "" {
		cmd.Version = a.version
		cmd.SetVersionTemplate(a.name + " v{{.Version}}\n")
	}

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	if !a.noConfig {
		a.addConfigFlag(namedFlagSets.FlagSet("global"))
	}
	globalflag.AddGlobalFlags(namedFlagSets.FlagSet("global"), cmd.Name())

	// Persistent so that subcommands share the same options.
	for _, f := range namedFlagSets.FlagSets {
		cmd.PersistentFlags().AddFlagSet(f)
	}

	cols, _, _ := term.TerminalSize(cmd.OutOrStdout())
	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, cols)

	if a.runFunc != nil {
		cmd.RunE = a.runCommand
	}
	for _, sub := range a.commands {
		if sub.RunE != nil {
			sub.PreRunE = chainPreRun(sub.PreRunE, a.prepare)
		}
		cmd.AddCommand(sub)
	}

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if err := a.prepare(cmd, args); err != nil {
		return err
	}
	return a.runFunc()
}

// prepare merges configuration into the flags, then completes and
// validates the options.
func (a *App) prepare(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(cmd.Flags()); err != nil {
		return err
	}
	if a.options == nil {
		return nil
	}
	if err := a.options.Complete(); err != nil {
		return err
	}
	return a.options.Validate()
}

func chainPreRun(first, then func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	if first == nil {
		return then
	}
	return func(cmd *cobra.Command, args []string) error {
		if err := first(cmd, args); err != nil {
			return err
		}
		return then(cmd, args)
	}
}

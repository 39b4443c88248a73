package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type testOptions struct {
	Level    string
	Count    int
	complete bool
	invalid  error
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Level, "log.level", "warn", "level")
	fs.IntVar(&o.Count, "retry-count", 1, "count")
	return fss
}

func (o *testOptions) Complete() error {
	o.complete = true
	return nil
}

func (o *testOptions) Validate() error { return o.invalid }

func newTestApp(opts *testOptions, ran *bool, extra ...Option) *App {
	all := append([]Option{
		WithOptions(opts),
		WithEnvPrefix("DASHTEST"),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			*ran = true
			return nil
		}),
	}, extra...)
	return NewApp("dash-test", "test app", all...)
}

func TestAppFlagsWin(t *testing.T) {
	t.Setenv("DASHTEST_LOG_LEVEL", "info")

	opts := &testOptions{}
	var ran bool
	a := newTestApp(opts, &ran)
	a.Command().SetArgs([]string{"--log.level=debug"})

	require.NoError(t, a.Run())
	assert.True(t, ran)
	assert.True(t, opts.complete)
	assert.Equal(t, "debug", opts.Level)
}

func TestAppEnvironment(t *testing.T) {
	t.Setenv("DASHTEST_LOG_LEVEL", "info")
	t.Setenv("DASHTEST_RETRY_COUNT", "3")

	opts := &testOptions{}
	var ran bool
	a := newTestApp(opts, &ran)
	a.Command().SetArgs([]string{})

	require.NoError(t, a.Run())
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, 3, opts.Count)
}

func TestAppConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\nretry-count: 5\n"), 0o644))

	opts := &testOptions{}
	var ran bool
	a := newTestApp(opts, &ran)
	a.Command().SetArgs([]string{"--config", path})

	require.NoError(t, a.Run())
	assert.Equal(t, "error", opts.Level)
	assert.Equal(t, 5, opts.Count)
}

func TestAppValidation(t *testing.T) {
	opts := &testOptions{invalid: errors.New("bad")}
	var ran bool
	a := newTestApp(opts, &ran)
	a.Command().SetArgs([]string{})

	assert.EqualError(t, a.Run(), "bad")
	assert.False(t, ran)
}

func TestAppRejectsArguments(t *testing.T) {
	var ran bool
	a := newTestApp(&testOptions{}, &ran)
	a.Command().SetArgs([]string{"stray"})

	assert.Error(t, a.Run())
	assert.False(t, ran)
}

func TestAppVersion(t *testing.T) {
	var ran bool
	a := newTestApp(&testOptions{}, &ran, WithVersion("1.2.3"))
	assert.Equal(t, "1.2.3", a.Command().Version)
}

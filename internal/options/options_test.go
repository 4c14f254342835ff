package options

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	o, err := Parse(afero.NewMemMapFs(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), o)
}

func TestPrecedence(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/castlelink.conf", []byte(`
# castlelink
source = serial
device = /dev/ttyACM0
baud = 57600
poles = 12
; overridden below
interval = 1s
`), 0o644))

	o, err := Parse(fs, `-interval 500ms -listen ":8080"`,
		[]string{"-config", "/etc/castlelink.conf", "-poles", "14", "-esc-lines", "17,27"})
	require.NoError(t, err)

	assert.Equal(t, SourceSerial, o.Source)
	assert.Equal(t, "/dev/ttyACM0", o.Device)
	assert.Equal(t, 57600, o.Baud)
	assert.Equal(t, 14, o.Poles, "command line beats the file")
	assert.Equal(t, 500*time.Millisecond, o.Interval, "environment beats the file")
	assert.Equal(t, ":8080", o.Listen)
	assert.Equal(t, []int{17, 27}, o.ESCLines)
}

func TestParseErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.conf", []byte("colour = blue\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "garbled.conf", []byte("source\n"), 0o644))

	for name, tc := range map[string]struct {
		env  string
		args []string
	}{
		"unterminated env": {env: `-device "/dev/tty`},
		"unknown flag":     {args: []string{"-colour", "blue"}},
		"bad list":         {args: []string{"-esc-lines", "17,x"}},
		"missing file":     {args: []string{"-config", "none.conf"}},
		"unknown key":      {args: []string{"-config", "bad.conf"}},
		"garbled file":     {args: []string{"-config", "garbled.conf"}},
		"serial no device": {args: []string{"-source", "serial"}},
		"bad source":       {args: []string{"-source", "can"}},
		"zero poles":       {args: []string{"-poles", "0"}},
	} {
		_, err := Parse(fs, tc.env, tc.args)
		assert.Error(t, err, name)
	}
}

func TestReadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "c.conf", []byte("a = 1\n\n  b=two words  \n# c = 3\n"), 0o644))

	kv, err := ReadConfig(fs, "c.conf")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "two words"}, kv)
}

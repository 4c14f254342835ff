// Package options reads the castlelink daemon configuration: command line
// flags, default flags from $CASTLELINK_OPTS and an optional key = value file.
// Command line beats the environment, which beats the file.
package options

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/afero"
)

// EnvVar holds default flags, split like a shell command line.
const EnvVar = "CASTLELINK_OPTS"

// Telemetry sources.
const (
	SourceGPIO   = "gpio"
	SourceSerial = "serial"
)

// Options is the daemon configuration.
type Options struct {
	Source string

	// gpio source
	Chip        string
	ESCLines    []int
	ThrottleOut int
	ThrottleIn  int // -1 generates the throttle signal
	LED         int // -1 for none
	Watchdog    time.Duration

	// serial source
	Device string
	Baud   int

	Broker   string // mqtt://[user[:pass]@]host[:port]/topic
	Listen   string // websocket address, empty disables
	Database string // sqlite file, empty disables

	Interval time.Duration
	Poles    int
	Config   string
	Verbose  bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Options {
	return Options{
		Source:      SourceGPIO,
		Chip:        "gpiochip0",
		ESCLines:    []int{17},
		ThrottleOut: 18,
		ThrottleIn:  -1,
		LED:         -1,
		Watchdog:    time.Second,
		Baud:        115200,
		Interval:    200 * time.Millisecond,
		Poles:       2,
	}
}

type intList struct {
	v *[]int
}

func (l intList) String() string {
	if l.v == nil {
		return ""
	}
	parts := make([]string, len(*l.v))
	for i, n := range *l.v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func (l intList) Set(s string) error {
	var out []int
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return err
		}
		out = append(out, n)
	}
	*l.v = out
	return nil
}

func newFlagSet(name string, o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.Source, "source", o.Source, "Telemetry source [gpio|serial]")
	fs.StringVar(&o.Chip, "chip", o.Chip, "GPIO chip")
	fs.Var(intList{&o.ESCLines}, "esc-lines", "Comma separated ESC telemetry line offsets")
	fs.IntVar(&o.ThrottleOut, "throttle-out", o.ThrottleOut, "Throttle output line offset")
	fs.IntVar(&o.ThrottleIn, "throttle-in", o.ThrottleIn, "Receiver throttle line offset, -1 to generate")
	fs.IntVar(&o.LED, "led", o.LED, "Indicator line offset, -1 for none")
	fs.DurationVar(&o.Watchdog, "watchdog", o.Watchdog, "Throttle watchdog timeout")
	fs.StringVar(&o.Device, "device", o.Device, "Serial device of the firmware console")
	fs.IntVar(&o.Baud, "baud", o.Baud, "Serial baud rate")
	fs.StringVar(&o.Broker, "broker", o.Broker, "MQTT URI (mqtt://[user[:pass]@]broker[:port]/topic)")
	fs.StringVar(&o.Listen, "listen", o.Listen, "Websocket listen address")
	fs.StringVar(&o.Database, "db", o.Database, "SQLite recording file")
	fs.DurationVar(&o.Interval, "interval", o.Interval, "Sampling interval")
	fs.IntVar(&o.Poles, "poles", o.Poles, "Motor magnetic poles")
	fs.StringVar(&o.Config, "config", o.Config, "Config file of key = value lines")
	fs.BoolVar(&o.Verbose, "verbose", o.Verbose, "Log every sample")
	return fs
}

// Parse builds the configuration from the config file on fsys, the env
// string (the value of EnvVar) and the command line args.
func Parse(fsys afero.Fs, env string, args []string) (Options, error) {
	o := Defaults()

	envArgs, err := shlex.Split(env)
	if err != nil {
		return o, fmt.Errorf("$%s: %w", EnvVar, err)
	}
	envSet := newFlagSet("$"+EnvVar, &o)
	envSet.SetOutput(io.Discard)
	if err := envSet.Parse(envArgs); err != nil {
		return o, fmt.Errorf("$%s: %w", EnvVar, err)
	}
	cliSet := newFlagSet("castlelink", &o)
	cliSet.SetOutput(io.Discard)
	if err := cliSet.Parse(args); err != nil {
		return o, err
	}

	if o.Config != "" {
		set := map[string]bool{}
		envSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
		cliSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

		kv, err := ReadConfig(fsys, o.Config)
		if err != nil {
			return o, err
		}
		for key, val := range kv {
			if set[key] || key == "config" {
				continue
			}
			if cliSet.Lookup(key) == nil {
				return o, fmt.Errorf("%s: unknown key %q", o.Config, key)
			}
			if err := cliSet.Set(key, val); err != nil {
				return o, fmt.Errorf("%s: %s: %w", o.Config, key, err)
			}
		}
	}
	return o, o.Validate()
}

// ReadConfig reads key = value lines. Blank lines and lines starting with #
// or ; are skipped.
func ReadConfig(fsys afero.Fs, name string) (map[string]string, error) {
	r, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		l := strings.TrimSpace(scanner.Text())
		if len(l) == 0 || strings.HasPrefix(l, "#") || strings.HasPrefix(l, ";") {
			continue
		}
		parts := strings.SplitN(l, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s:%d: expected key = value", name, n)
		}
		h[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return h, scanner.Err()
}

// Validate checks the combination of settings.
func (o Options) Validate() error {
	switch o.Source {
	case SourceGPIO:
		if len(o.ESCLines) == 0 {
			return errors.New("no esc lines")
		}
	case SourceSerial:
		if o.Device == "" {
			return errors.New("serial source needs -device")
		}
	default:
		return fmt.Errorf("unknown source %q", o.Source)
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval %v", o.Interval)
	}
	if o.Poles <= 0 {
		return fmt.Errorf("poles %d", o.Poles)
	}
	return nil
}

// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"fmt"
	"io/ioutil"
	"strings"

	"github.com/diffeo/go-arts/audio"
	"github.com/diffeo/go-arts/iomanager"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v2"
)

// options are the daemon settings.  The configuration file uses the
// long flag names as keys; flags given on the command line win.
type options struct {
	Method       string `mapstructure:"audio"`
	Rate         int    `mapstructure:"rate"`
	Bits         int    `mapstructure:"bits"`
	FullDuplex   bool   `mapstructure:"full-duplex"`
	Device       string `mapstructure:"device"`
	Fragments    int    `mapstructure:"fragments"`
	FragmentSize int    `mapstructure:"fragment-size"`
	Network      bool   `mapstructure:"network"`
	Port         int    `mapstructure:"port"`
	NoAuth       bool   `mapstructure:"no-auth"`
	Force        bool   `mapstructure:"force"`
	HTTP         string `mapstructure:"http"`
	GlobalsURL   string `mapstructure:"globals-url"`
	Debug        bool   `mapstructure:"debug"`

	// audio is parsed from Method and Device by check.
	audio audio.Method
}

var flags = []cli.Flag{
	cli.StringFlag{
		Name:  "audio, a",
		Usage: "audio I/O method[:device], or empty to auto-detect",
	},
	cli.IntFlag{
		Name:  "rate, r",
		Value: 44100,
		Usage: "sampling rate",
	},
	cli.IntFlag{
		Name:  "bits, b",
		Value: 16,
		Usage: "sample size, 8 or 16",
	},
	cli.BoolFlag{
		Name:  "full-duplex, d",
		Usage: "record as well as play",
	},
	cli.StringFlag{
		Name:  "device, D",
		Usage: "audio device, overriding the one in --audio",
	},
	cli.IntFlag{
		Name:  "fragments, F",
		Value: 7,
		Usage: "number of fragments",
	},
	cli.IntFlag{
		Name:  "fragment-size, S",
		Value: 1024,
		Usage: "fragment size in bytes, a power of two",
	},
	cli.BoolFlag{
		Name:  "network, n",
		Usage: "accept MCOP connections over TCP",
	},
	cli.IntFlag{
		Name:  "port, p",
		Usage: "TCP port for MCOP connections, implies --network",
	},
	cli.BoolFlag{
		Name:  "no-auth, u",
		Usage: "accept clients without the secret cookie",
	},
	cli.BoolFlag{
		Name:  "force, f",
		Usage: "fall back to the null driver if audio cannot be opened",
	},
	cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration file",
	},
	cli.StringFlag{
		Name:  "http",
		Usage: "[ip]:port for the HTTP status interface",
	},
	cli.StringFlag{
		Name:  "globals-url",
		Usage: "publish global references through another daemon's HTTP status interface",
	},
	cli.BoolFlag{
		Name:  "debug",
		Usage: "log debug messages",
	},
}

// loadOptions merges the defaults, the configuration file, and the
// command line.
func loadOptions(c *cli.Context) (*options, error) {
	opts := &options{
		Method:       c.String("audio"),
		Rate:         c.Int("rate"),
		Bits:         c.Int("bits"),
		FullDuplex:   c.Bool("full-duplex"),
		Device:       c.String("device"),
		Fragments:    c.Int("fragments"),
		FragmentSize: c.Int("fragment-size"),
		Network:      c.Bool("network"),
		Port:         c.Int("port"),
		NoAuth:       c.Bool("no-auth"),
		Force:        c.Bool("force"),
		HTTP:         c.String("http"),
		GlobalsURL:   c.String("globals-url"),
		Debug:        c.Bool("debug"),
	}
	if filename := c.String("config"); filename != "" {
		file, err := loadConfigYaml(filename)
		if err != nil {
			return nil, err
		}
		// Keep what the command line set explicitly.
		for _, f := range flags {
			name := strings.Split(f.GetName(), ",")[0]
			if c.IsSet(name) {
				delete(file, name)
			}
		}
		if err := decodeOptions(file, opts); err != nil {
			return nil, fmt.Errorf("%v: %v", filename, err)
		}
	}
	if err := opts.check(); err != nil {
		return nil, err
	}
	return opts, nil
}

func loadConfigYaml(filename string) (map[string]interface{}, error) {
	var result map[string]interface{}
	bytes, err := ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}

func decodeOptions(in map[string]interface{}, opts *options) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           opts,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// check validates the options and fills in the audio method.
func (opts *options) check() error {
	if opts.Method != "" {
		if err := opts.audio.Set(opts.Method); err != nil {
			return err
		}
	}
	if opts.Device != "" {
		opts.audio.Device = opts.Device
	}
	if opts.Rate <= 0 {
		return fmt.Errorf("invalid sampling rate %d", opts.Rate)
	}
	if opts.Bits != 8 && opts.Bits != 16 {
		return fmt.Errorf("invalid sample size %d, must be 8 or 16", opts.Bits)
	}
	if opts.Fragments < 2 {
		return fmt.Errorf("invalid fragment count %d, must be at least 2", opts.Fragments)
	}
	size := opts.FragmentSize
	if size < 128 || size > 65536 || size&(size-1) != 0 {
		return fmt.Errorf("invalid fragment size %d, must be a power of two from 128 to 65536", size)
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return fmt.Errorf("invalid port %d", opts.Port)
	}
	if opts.Port != 0 {
		opts.Network = true
	}
	return nil
}

// audioConfig builds the audio subsystem settings.
func (opts *options) audioConfig(iom iomanager.IOManager, logger logrus.FieldLogger) audio.Config {
	return audio.Config{
		IOManager:     iom,
		Logger:        logger,
		Method:        opts.audio,
		SamplingRate:  opts.Rate,
		Channels:      2,
		Bits:          opts.Bits,
		FragmentSize:  opts.FragmentSize,
		FragmentCount: opts.Fragments,
		FullDuplex:    opts.FullDuplex,
	}
}

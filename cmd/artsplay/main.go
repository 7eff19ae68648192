// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Program artsplay plays WAV files through a running sound server.
// By default the server reads the file itself; with --stream the file
// is decoded here and sent as a stream.
package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restclient"
	"github.com/diffeo/go-arts/soundserver"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// player holds the connection to the sound server.
type player struct {
	d      *mcop.Dispatcher
	client *soundserver.Client
	log    logrus.FieldLogger
	wait   bool
}

func main() {
	app := cli.NewApp()
	app.Name = "artsplay"
	app.Usage = "play WAV files through the sound server"
	app.ArgsUsage = "file.wav..."
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "stream, s",
			Usage: "decode locally and stream the samples",
		},
		cli.BoolFlag{
			Name:  "no-wait",
			Usage: "return once the server has accepted the sound",
		},
		cli.StringFlag{
			Name:  "globals-url",
			Usage: "find the server through a daemon's HTTP status interface",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "log debug messages",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("artsplay failed")
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("no files to play", 1)
	}
	logger := logrus.StandardLogger()
	if c.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	d, err := mcop.New(mcop.Config{Logger: logger})
	if err != nil {
		return err
	}
	defer d.Shutdown()

	var globals mcop.GlobalComm
	if url := c.String("globals-url"); url != "" {
		rc, err := restclient.New(url)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		globals = restclient.NewGlobalComm(rc, logger)
	} else {
		globals, err = mcop.NewTmpGlobalComm(d.Dir())
		if err != nil {
			return err
		}
	}

	client, err := soundserver.Connect(mcop.NewObjectManager(d, globals))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("cannot reach the sound server: %v", err), 1)
	}
	defer client.Release()

	p := &player{d: d, client: client, log: logger, wait: !c.Bool("no-wait")}
	for _, filename := range c.Args() {
		if c.Bool("stream") {
			err = p.stream(filename)
		} else {
			err = p.play(filename)
		}
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("%v: %v", filename, err), 1)
		}
	}
	return nil
}

// play asks the server to play a file by name.
func (p *player) play(filename string) error {
	path, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	id, err := p.client.Play(path)
	if err != nil {
		return err
	}
	if id == 0 {
		return errors.New("the sound server cannot play it")
	}
	p.log.WithFields(logrus.Fields{"id": id, "file": path}).Debug("playing")
	return p.waitFor(id)
}

// stream decodes a file and feeds it to the server as fast as the
// server accepts it.
func (p *player) stream(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	sound, err := soundserver.DecodeWAV(file)
	file.Close()
	if err != nil {
		return err
	}

	id, err := p.client.Attach(int32(sound.SamplingRate), int32(sound.Channels), 16, filepath.Base(filename))
	if err != nil {
		return err
	}
	if id == 0 {
		return fmt.Errorf("the sound server refused a %d Hz %d channel stream", sound.SamplingRate, sound.Channels)
	}
	pause, err := p.client.ServerBufferTime()
	if err != nil {
		return err
	}

	data := make([]byte, 2*len(sound.Samples))
	for i, v := range sound.Samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	for len(data) > 0 {
		n, err := p.client.Write(id, data)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("stream %d ended early", id)
		}
		data = data[n:]
		if len(data) > 0 {
			p.sleep(time.Duration(pause/2) * time.Millisecond)
		}
	}
	if err := p.client.Detach(id); err != nil {
		return err
	}
	return p.waitFor(id)
}

// waitFor polls until job id is gone.
func (p *player) waitFor(id int32) error {
	for p.wait {
		jobs, err := p.client.Jobs()
		if err != nil {
			return err
		}
		found := false
		for _, job := range jobs {
			found = found || job == id
		}
		if !found {
			return nil
		}
		p.sleep(100 * time.Millisecond)
	}
	return nil
}

// sleep waits while letting the event loop run.
func (p *player) sleep(d time.Duration) {
	deadline := time.Now().Add(d)
	iom := p.d.IOManager()
	for time.Now().Before(deadline) {
		iom.ProcessOneEvent(false)
		time.Sleep(5 * time.Millisecond)
	}
}

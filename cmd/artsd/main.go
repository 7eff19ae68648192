// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Program artsd runs a sound server.  It opens the audio device,
// mixes the streams and files its clients send, and publishes itself
// as the global reference Arts_SimpleSoundServer.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/diffeo/go-arts/audio"
	"github.com/diffeo/go-arts/iomanager"
	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restclient"
	"github.com/diffeo/go-arts/restserver"
	"github.com/diffeo/go-arts/soundserver"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "artsd"
	app.Usage = "sound server"
	app.Flags = flags
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("artsd failed")
	}
}

func run(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.NewExitError("unexpected arguments", 1)
	}
	opts, err := loadOptions(c)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	logger := logrus.StandardLogger()
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	iom, err := iomanager.New(iomanager.Config{Logger: logger})
	if err != nil {
		return err
	}
	defer iom.Close()

	d, err := mcop.New(mcop.Config{
		IOManager:  iom,
		Logger:     logger,
		NoAuth:     opts.NoAuth,
		ListenUnix: true,
		ListenTCP:  opts.Network,
		TCPPort:    opts.Port,
	})
	if err != nil {
		return err
	}
	defer d.Shutdown()
	if err := d.Listen(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	sub, err := openAudio(opts, iom, logger)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer sub.Close()

	server, err := soundserver.New(soundserver.Config{
		Dispatcher: d,
		SubSystem:  sub,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer server.Close()

	var globals mcop.GlobalComm
	if opts.GlobalsURL != "" {
		client, err := restclient.New(opts.GlobalsURL)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		globals = restclient.NewGlobalComm(client, logger)
	} else {
		globals, err = mcop.NewTmpGlobalComm(d.Dir())
		if err != nil {
			return err
		}
	}
	om := mcop.NewObjectManager(d, globals)
	if !om.AddGlobalReference(server.Object(), soundserver.GlobalName) {
		return cli.NewExitError("another sound server is already running", 1)
	}
	defer om.RemoveGlobalReferences()

	if opts.HTTP != "" {
		srv, err := serveHTTP(opts.HTTP, restserver.Sources{
			Dispatcher:    d,
			ObjectManager: om,
			SubSystem:     sub,
			SoundServer:   server,
		}, logger)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		defer srv.Close()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-signals
		logger.WithField("signal", sig).Info("shutting down")
		iom.Terminate()
	}()

	logger.WithFields(logrus.Fields{
		"serverID": d.ServerID(),
		"urls":     d.URLs(),
		"method":   sub.Method().Name,
	}).Info("sound server running")
	iom.Run()
	return nil
}

// openAudio opens the audio subsystem, falling back to the null
// driver if forced.
func openAudio(opts *options, iom iomanager.IOManager, logger logrus.FieldLogger) (*audio.SubSystem, error) {
	sub := audio.NewSubSystem(opts.audioConfig(iom, logger))
	_, err := sub.Open()
	if err == nil {
		return sub, nil
	}
	if !opts.Force {
		return nil, err
	}
	logger.WithError(err).Warn("cannot open audio, using the null driver")
	sub.SetMethod(audio.Method{Name: audio.NullFactory.Name})
	if _, err := sub.Open(); err != nil {
		return nil, err
	}
	return sub, nil
}

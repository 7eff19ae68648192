// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net"
	"net/http"

	"github.com/diffeo/go-arts/restserver"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// serveHTTP starts the status service on laddr in the background.
func serveHTTP(laddr string, src restserver.Sources, logger *logrus.Logger) (*http.Server, error) {
	r := mux.NewRouter()
	restserver.PopulateRouter(r, src)

	recovery := negroni.NewRecovery()
	recovery.Logger = logger
	requests := negroni.NewLogger()
	requests.ALogger = logger
	n := negroni.New(recovery, requests)
	n.UseHandler(r)

	ln, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{Handler: n}
	go func() {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
		}
	}()
	logger.WithField("address", ln.Addr().String()).Info("serving HTTP status")
	return srv, nil
}

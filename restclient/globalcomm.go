// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restdata"
	"github.com/sirupsen/logrus"
)

// GlobalComm is a naming service backed by a remote status service.
// Transport failures are logged and reported as a failed Put or an
// empty Get.
type GlobalComm struct {
	Client *Client
	Logger logrus.FieldLogger
}

var _ mcop.GlobalComm = (*GlobalComm)(nil)

// NewGlobalComm creates a naming service on top of c.
func NewGlobalComm(c *Client, logger logrus.FieldLogger) *GlobalComm {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GlobalComm{Client: c, Logger: logger}
}

// Put stores value under name, returning false if the name is taken
// or the service could not be reached.
func (g *GlobalComm) Put(name, value string) bool {
	err := g.Client.PutGlobal(name, value)
	if err == nil {
		return true
	}
	if _, taken := err.(restdata.ErrGlobalTaken); !taken {
		g.Logger.WithError(err).WithField("name", name).Warn("storing global failed")
	}
	return false
}

// Get returns the value stored under name, or "".
func (g *GlobalComm) Get(name string) string {
	global, err := g.Client.Global(name)
	if err != nil {
		if _, missing := err.(restdata.ErrNoSuchGlobal); !missing {
			g.Logger.WithError(err).WithField("name", name).Warn("reading global failed")
		}
		return ""
	}
	return global.Value
}

// Erase removes name.
func (g *GlobalComm) Erase(name string) {
	if err := g.Client.EraseGlobal(name); err != nil {
		g.Logger.WithError(err).WithField("name", name).Warn("erasing global failed")
	}
}

// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/diffeo/go-arts/audio"
	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restdata"
	"github.com/diffeo/go-arts/soundserver"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sources are the parts of a process the service reports on.  Only
// Dispatcher is required; resources for absent parts are not routed.
type Sources struct {
	// Dispatcher is the process's MCOP dispatcher.  Its lock is
	// held while handlers run.
	Dispatcher *mcop.Dispatcher

	// ObjectManager supplies the names this process published.
	ObjectManager *mcop.ObjectManager

	// GlobalComm is the naming service.  Defaults to the object
	// manager's.
	GlobalComm mcop.GlobalComm

	// SubSystem is the audio subsystem.
	SubSystem *audio.SubSystem

	// SoundServer is the sound server.
	SoundServer *soundserver.Server
}

// NewRouter creates a new HTTP handler that serves every resource,
// rooted at the URL path root.  For more control over this setup,
// create a mux.Router and call PopulateRouter instead.
func NewRouter(src Sources) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, src)
	return r
}

// PopulateRouter adds the status routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the service under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/status").Subrouter()
//     restserver.PopulateRouter(s, sources)
func PopulateRouter(r *mux.Router, src Sources) {
	if src.GlobalComm == nil && src.ObjectManager != nil {
		src.GlobalComm = src.ObjectManager.GlobalComm()
	}
	api := &restAPI{Sources: src, Router: r}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the REST API.
type restAPI struct {
	Sources
	Router *mux.Router
}

func (api *restAPI) handler(rep interface{}) *resourceHandler {
	return &resourceHandler{
		Representation: rep,
		Context:        api.Context,
		Locker:         api.Dispatcher,
	}
}

// PopulateRouter adds all URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	h := api.handler(restdata.RootData{})
	h.Get = api.RootDocument
	r.Path("/").Name("root").Handler(h)

	h = api.handler(restdata.ObjectList{})
	h.Get = api.ObjectList
	r.Path("/objects").Name("objects").Handler(h)

	h = api.handler(restdata.Object{})
	h.Get = api.ObjectGet
	r.Path("/objects/{id}").Name("object").Handler(h)

	h = api.handler(restdata.ConnectionList{})
	h.Get = api.ConnectionList
	r.Path("/connections").Name("connections").Handler(h)

	h = api.handler(restdata.GlobalList{})
	h.Get = api.GlobalList
	r.Path("/globals").Name("globals").Handler(h)

	h = api.handler(restdata.Global{})
	if api.GlobalComm != nil {
		h.Get = api.GlobalGet
		h.Put = api.GlobalPut
		h.Delete = api.GlobalDelete
	}
	r.Path("/globals/{name}").Name("global").Handler(h)

	if api.SubSystem != nil {
		h = api.handler(restdata.Audio{})
		h.Get = api.AudioGet
		r.Path("/audio").Name("audio").Handler(h)
	}

	if api.SoundServer != nil {
		h = api.handler(restdata.JobList{})
		h.Get = api.JobList
		r.Path("/jobs").Name("jobs").Handler(h)
	}

	r.Path("/metrics").Name("metrics").Handler(promhttp.Handler())
}

// RootDocument returns links to the other resources.
func (api *restAPI) RootDocument(ctx *context) (interface{}, error) {
	resp := restdata.RootData{
		ServerID: api.Dispatcher.ServerID(),
		MCOPURLs: api.Dispatcher.URLs(),
	}
	b := buildURLs(api.Router).
		URL(&resp.URL, "root").
		URL(&resp.ObjectsURL, "objects").
		Template(&resp.ObjectURL, "object", "id").
		URL(&resp.ConnectionsURL, "connections").
		URL(&resp.GlobalsURL, "globals").
		Template(&resp.GlobalURL, "global", "name").
		URL(&resp.MetricsURL, "metrics")
	if api.SubSystem != nil {
		b.URL(&resp.AudioURL, "audio")
	}
	if api.SoundServer != nil {
		b.URL(&resp.JobsURL, "jobs")
	}
	return resp, b.Error
}

// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes the state of an MCOP process as a REST
// service: its objects and connections, the global naming service,
// the audio subsystem, and the sound server's jobs.  The restclient
// package is a matching client.
//
// The complete REST API is defined in the restdata package.  In
// particular, note that the URLs described here are not actually part
// of the API.
//
// Every handler runs with the dispatcher lock held, so it sees a
// consistent picture of a process whose event loop runs in another
// goroutine.
//
// MIME Types
//
// This interface understands MIME types as follows:
//
//     application/vnd.arts.status.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/vnd.arts.status+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// The following URLs are defined:
//
//     /
//     /objects
//     /objects/{id}
//     /connections
//     /globals
//     /globals/{name}
//     /audio
//     /jobs
//     /metrics
//
// A global name that is not URL-safe printable ASCII is base64
// encoded with the URL-safe alphabet, no padding, and a leading -.
package restserver

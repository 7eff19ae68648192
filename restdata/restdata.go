// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines the data structures shared between the
// restserver and restclient packages.  JSON encodings of these are
// passed across the wire as the application/vnd.arts.status.v1+json
// MIME type.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This returns a
// JSON serialization of RootData, which links to the other
// resources.  Some links are RFC 6570 URI templates with a {name}
// parameter in curly braces; for instance, if the service is rooted
// at /, the root document looks like
//
//     {
//         "objects_url": "/objects",
//         "object_url": "/objects/{id}",
//         "globals_url": "/globals",
//         "global_url": "/globals/{name}",
//         ...
//     }
//
// The URL structure is not part of the API contract; only the
// location of the root document is.
//
// Encoding Considerations
//
// A name in a URL must be made of unreserved ASCII characters.
// Other names are encoded with the URL-safe base64 alphabet, no
// padding, and a leading hyphen; see MaybeEncodeName.
//
// Timestamps are RFC 3339 strings.
//
// Errors
//
// Failing requests return an ErrorResponse with a failing HTTP
// status.  The well-known MCOP errors round-trip through it.  A
// server-side panic is returned with error code "panic".
package restdata

import "time"

// V1JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of this content.
const V1JSONMediaType = "application/vnd.arts.status.v1+json"

// JSONMediaType requests the most recent version of the JSON
// representation of this content.
const JSONMediaType = "application/vnd.arts.status+json"

// Resource is a base type for all resources in this module.
type Resource struct {
	// URL points at this resource.  If this record is a "short"
	// record, the contents of this URL are the full record.
	URL string `json:"url"`
}

// RootData is returned by the root path.
type RootData struct {
	Resource

	// ServerID is the MCOP server ID of the process.
	ServerID string `json:"server_id"`

	// MCOPURLs lists the addresses the process accepts MCOP
	// connections on.
	MCOPURLs []string `json:"mcop_urls"`

	// ObjectsURL points at the ObjectList.  GET only.
	ObjectsURL string `json:"objects_url"`

	// ObjectURL is a URI template with one parameter, "id", for
	// a single Object.  GET only.
	ObjectURL string `json:"object_url"`

	// ConnectionsURL points at the ConnectionList.  GET only.
	ConnectionsURL string `json:"connections_url"`

	// GlobalsURL points at the GlobalList of names this process
	// published.  GET only.
	GlobalsURL string `json:"globals_url"`

	// GlobalURL is a URI template with one parameter, "name",
	// for a single Global.  It supports GET, PUT, and DELETE,
	// and reaches every name in the naming service, not only
	// this process's.
	GlobalURL string `json:"global_url"`

	// AudioURL points at the Audio status, if the process has an
	// audio subsystem.  GET only.
	AudioURL string `json:"audio_url,omitempty"`

	// JobsURL points at the JobList, if the process runs a sound
	// server.  GET only.
	JobsURL string `json:"jobs_url,omitempty"`

	// MetricsURL points at the Prometheus metrics.
	MetricsURL string `json:"metrics_url,omitempty"`
}

// ObjectShort identifies a local object.
type ObjectShort struct {
	Resource
	ID        int32  `json:"id"`
	Interface string `json:"interface"`
}

// ObjectList lists the live local objects.
type ObjectList struct {
	Objects []ObjectShort `json:"objects"`
}

// Object describes a local object and its reference counts.
type Object struct {
	ObjectShort

	// Reference is the "MCOP-Object:" string form of the
	// object's reference.
	Reference string `json:"reference"`

	// RefCount counts local holders plus remote users.
	RefCount int `json:"ref_count"`

	// RemoteSendCount counts references sent but not yet
	// claimed.
	RemoteSendCount int `json:"remote_send_count"`

	// RemoteUsers counts connections holding a reference.
	RemoteUsers int `json:"remote_users"`
}

// Connection describes one peer connection.
type Connection struct {
	ID       uint64 `json:"id"`
	Peer     string `json:"peer"`
	State    string `json:"state"`
	ServerID string `json:"server_id"`
	Broken   bool   `json:"broken"`
	RefCount int    `json:"ref_count"`
}

// ConnectionList lists the open connections.
type ConnectionList struct {
	Connections []Connection `json:"connections"`
}

// Global is one entry in the naming service.
type Global struct {
	Resource

	// Name is the global name.  It does not need to be provided
	// when putting a value.
	Name string `json:"name"`

	// Value is usually an "MCOP-Object:" string.
	Value string `json:"value"`
}

// GlobalList lists the names this process published.
type GlobalList struct {
	Globals []Global `json:"globals"`
}

// Audio describes the audio subsystem.
type Audio struct {
	Running       bool   `json:"running"`
	Method        string `json:"method"`
	Device        string `json:"device,omitempty"`
	SamplingRate  int    `json:"sampling_rate"`
	Channels      int    `json:"channels"`
	Bits          int    `json:"bits"`
	FragmentSize  int    `json:"fragment_size"`
	FragmentCount int    `json:"fragment_count"`
	FullDuplex    bool   `json:"full_duplex"`
	Buffered      int    `json:"buffered"`
	Underruns     int    `json:"underruns"`
	Overruns      int    `json:"overruns"`
	Error         string `json:"error,omitempty"`
}

// Job describes one sound server job.
type Job struct {
	ID         int32     `json:"id"`
	UID        string    `json:"uid"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Connection uint64    `json:"connection,omitempty"`
	Started    time.Time `json:"started"`
	Buffered   int       `json:"buffered,omitempty"`
}

// JobList lists the sound server's jobs along with its timing
// attributes, in milliseconds.
type JobList struct {
	Jobs                []Job   `json:"jobs"`
	ServerBufferTime    float32 `json:"server_buffer_time"`
	MinStreamBufferTime float32 `json:"min_stream_buffer_time"`
	CPUUsage            float64 `json:"cpu_usage"`
}

// ErrorResponse can be a response to any method, generally
// accompanied by a failing HTTP status code.
type ErrorResponse struct {
	// Error is a short description of the failure.  This may be
	// the name of an MCOP error, the string "panic", or the
	// string "error" for some other kind of error.
	Error string `json:"error"`

	// Message is a human-readable description of the failure.
	Message string `json:"message,omitempty"`

	// Value is an additional parameter of the error, such as an
	// object ID or a name.
	Value string `json:"value,omitempty"`

	// Stack is a stack trace of a panic.
	Stack string `json:"stack,omitempty"`
}
